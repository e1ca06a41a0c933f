package server

import (
	"time"

	"github.com/kataras/iris/v12"

	"github.com/example/flashsale/internal/apperr"
	"github.com/example/flashsale/internal/auth"
	"github.com/example/flashsale/internal/config"
	"github.com/example/flashsale/internal/infra/mq"
	"github.com/example/flashsale/internal/infra/redis"
	"github.com/example/flashsale/internal/middleware"
	"github.com/example/flashsale/internal/repository/mysql"
	"github.com/example/flashsale/internal/service"
)

// writeBusinessError 统一的错误响应：稳定的 kind + 提示信息
// 存储类故障不向外泄露内部细节。
func writeBusinessError(ctx iris.Context, err error) {
	status := apperr.HTTPStatus(err)
	kind := apperr.KindOf(err)
	msg := err.Error()
	if kind == apperr.KindInternal {
		msg = "内部错误，请稍后再试"
	}
	ctx.StopWithJSON(status, iris.Map{
		"code": status,
		"kind": string(kind),
		"msg":  msg,
	})
}

// RegisterRoutes 注册所有 HTTP 路由
func RegisterRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	store := mysql.NewStore(db)

	// 服务
	userSvc := service.NewUserService(store, &cfg.JWT)
	productSvc := service.NewProductService(store)
	purchaseSvc := service.NewPurchaseService(store, redisClient, mqConn, cfg.Sale.MaxPerPurchase)
	saleSvc := service.NewSaleService(store, redisClient)
	leaderboardSvc := service.NewLeaderboardService(store)

	// token 缓存：一致性哈希分片 + Redis
	ring := auth.NewConsistentHashRing(cfg.Auth.Nodes, cfg.Auth.HashReplicas)
	tokenCache := auth.NewTokenCache(redisClient, ring,
		time.Duration(cfg.Auth.TokenCacheTTLSeconds)*time.Second)

	api := app.Party("/api")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"code": 0,
			"msg":  "ok",
		})
	})

	// 用户注册/登录（简单示例）
	api.Post("/register", func(ctx iris.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		u, err := userSvc.Register(ctx.Request().Context(), req.Email, req.Password)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"id": u.ID, "email": u.Email}})
	})

	api.Post("/login", func(ctx iris.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, err := userSvc.Login(ctx.Request().Context(), req.Email, req.Password)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "邮箱或密码错误"})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"token": token}})
	})

	// 商品列表 / 详情（公开）
	api.Get("/products", func(ctx iris.Context) {
		list, err := productSvc.ListAll(ctx.Request().Context())
		if err != nil {
			writeBusinessError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/products/{id:int64}", func(ctx iris.Context) {
		pid, _ := ctx.Params().GetInt64("id")
		p, err := productSvc.GetByID(ctx.Request().Context(), pid)
		if err != nil {
			writeBusinessError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	// 排行榜（公开，只读）
	api.Get("/leaderboard", func(ctx iris.Context) {
		views, err := leaderboardSvc.ForAllProducts(ctx.Request().Context())
		if err != nil {
			writeBusinessError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": views})
	})

	api.Get("/leaderboard/{id:int64}", func(ctx iris.Context) {
		pid, _ := ctx.Params().GetInt64("id")
		view, err := leaderboardSvc.ForProduct(ctx.Request().Context(), pid)
		if err != nil {
			writeBusinessError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": view})
	})

	// 需要登录的接口
	authAPI := api.Party("/", func(ctx iris.Context) {
		token := ctx.GetHeader("Authorization")
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing token"})
			return
		}

		// 先查缓存，未命中再验签
		claims, hit, err := tokenCache.Get(ctx.Request().Context(), token)
		if err != nil || !hit {
			claims, err = auth.ParseToken(&cfg.JWT, token)
			if err != nil {
				ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid token"})
				return
			}
			_ = tokenCache.Set(ctx.Request().Context(), token, claims)
		}

		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("email", claims.Email)
		ctx.Values().Set("role", claims.Role)
		ctx.Next()
	})

	// 发起购买
	authAPI.Post("/purchase", middleware.PurchaseRateLimit(), func(ctx iris.Context) {
		var req struct {
			ProductID int64 `json:"product_id"`
			Quantity  int64 `json:"quantity"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		userID := ctx.Values().GetInt64Default("user_id", 0)

		summary, err := purchaseSvc.Purchase(ctx.Request().Context(), userID, req.ProductID, req.Quantity)
		if err != nil {
			writeBusinessError(ctx, err)
			return
		}
		ctx.StatusCode(201)
		ctx.JSON(iris.Map{"code": 0, "msg": "购买成功", "data": summary})
	})

	// 购买历史
	authAPI.Get("/purchase/history", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		orders, err := purchaseSvc.History(ctx.Request().Context(), userID)
		if err != nil {
			writeBusinessError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": orders})
	})

	// 管理接口
	adminAPI := authAPI.Party("/admin", func(ctx iris.Context) {
		if ctx.Values().GetStringDefault("role", "") != "admin" {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "需要管理员权限"})
			return
		}
		ctx.Next()
	})

	// 创建商品
	adminAPI.Post("/products", func(ctx iris.Context) {
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Price       int64  `json:"price"`
			TotalStock  int64  `json:"total_stock"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p, err := productSvc.Create(ctx.Request().Context(), req.Name, req.Description, req.Price, req.TotalStock)
		if err != nil {
			writeBusinessError(ctx, err)
			return
		}
		ctx.StatusCode(201)
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	// 设置秒杀开售时间（重置库存）
	adminAPI.Post("/sales/date", func(ctx iris.Context) {
		var req struct {
			ProductID int64  `json:"product_id"`
			StartTime string `json:"start_time"` // RFC3339
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		startTime, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "开售时间格式不正确，应为 RFC3339"})
			return
		}
		p, err := saleSvc.Activate(ctx.Request().Context(), req.ProductID, startTime)
		if err != nil {
			writeBusinessError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "开售时间设置成功", "data": p})
	})

	// 运行指标
	adminAPI.Get("/stats", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "data": service.GetMonitor().GetStats()})
	})
}
