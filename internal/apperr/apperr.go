package apperr

import (
	"errors"
	"net/http"
)

// Kind 业务错误的机器可读标识，对外接口中保持稳定
type Kind string

const (
	KindInvalidQuantity   Kind = "InvalidQuantity"
	KindInsufficientStock Kind = "InsufficientStock"
	KindSaleNotActive     Kind = "SaleNotActive"
	KindSaleAlreadyActive Kind = "SaleAlreadyActive"
	KindProductNotFound   Kind = "ProductNotFound"
	KindInternal          Kind = "Internal"
)

// Error 业务错误：稳定的 Kind + 面向用户的提示信息
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// 预定义业务错误，调用方通过 errors.Is 判断
var (
	ErrInvalidQuantity   = &Error{Kind: KindInvalidQuantity, Message: "购买数量不合法"}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Message: "库存不足"}
	ErrSaleNotActive     = &Error{Kind: KindSaleNotActive, Message: "商品当前不在秒杀中"}
	ErrSaleAlreadyActive = &Error{Kind: KindSaleAlreadyActive, Message: "该商品的秒杀尚未结束"}
	ErrProductNotFound   = &Error{Kind: KindProductNotFound, Message: "商品不存在"}
)

// KindOf 提取错误对应的 Kind，非业务错误一律归为 Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus 业务错误到 HTTP 状态码的映射
// 商品不存在 404，其余业务错误 400，存储等未知错误 500
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindProductNotFound:
		return http.StatusNotFound
	case KindInvalidQuantity, KindInsufficientStock, KindSaleNotActive, KindSaleAlreadyActive:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
