package restapi

import (
	"net/http/pprof"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// RouterOptions holds the handlers and switches of the HTTP surface.
// Nil handlers leave their routes out.
type RouterOptions struct {
	Portfolio *PortfolioHandler
	Proxy     *ProxyHandler
	Wallets   *WalletHandler
	Alerts    *AlertHandler
	Hub       *Hub
	Logger    *zap.Logger

	CORSOrigins []string
	Swagger     bool
	SwaggerSpec string // путь к swagger.yaml на диске
	Pprof       bool
}

// SetupRouter настраивает и возвращает экземпляр Gin роутера.
func SetupRouter(opts RouterOptions) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(opts.CORSOrigins) == 0 || (len(opts.CORSOrigins) == 1 && opts.CORSOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	if opts.Logger != nil {
		router.Use(ZapLogger(opts.Logger))
	}
	router.Use(gin.Recovery())

	api := router.Group("/api")
	if h := opts.Proxy; h != nil {
		api.GET("/balance/:address", h.GetBalance)
		api.GET("/tokens/:address", h.GetTokens)
		api.GET("/transactions/:address", h.GetTransactions)
		api.GET("/prices", h.GetPrices)
		api.GET("/wallet/:address/history", h.GetWalletHistory)
		api.GET("/wallet/:address/tokens", h.GetWalletTokens)
	}
	if h := opts.Portfolio; h != nil {
		api.GET("/portfolio", h.GetPortfolioHandler)
		api.POST("/portfolio/refresh", h.RefreshPortfolioHandler)
		router.GET("/healthz", h.HealthHandler)
	}
	if h := opts.Wallets; h != nil {
		api.GET("/wallets", h.ListWallets)
		api.POST("/wallets", h.AddWallet)
		api.DELETE("/wallets/:address", h.RemoveWallet)
	}
	if h := opts.Alerts; h != nil {
		api.GET("/alerts", h.ListAlerts)
		api.POST("/alerts", h.AddAlert)
		api.GET("/alerts/triggered", h.TriggeredAlerts)
		api.DELETE("/alerts/:id", h.RemoveAlert)
		api.PATCH("/alerts/:id", h.UpdateAlert)
		api.POST("/alerts/:id/toggle", h.ToggleAlert)
	}
	if opts.Hub != nil {
		router.GET("/ws", opts.Hub.HandleWS)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if opts.Swagger {
		spec := opts.SwaggerSpec
		if spec == "" {
			spec = "./docs/swagger.yaml"
		}
		router.StaticFile("/docs/swagger.yaml", spec)
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.yaml")))
	}

	if opts.Pprof {
		pprofRouter := router.Group("/debug/pprof")
		{
			pprofRouter.GET("/", gin.WrapF(pprof.Index))
			pprofRouter.GET("/cmdline", gin.WrapF(pprof.Cmdline))
			pprofRouter.GET("/profile", gin.WrapF(pprof.Profile))
			pprofRouter.POST("/symbol", gin.WrapF(pprof.Symbol))
			pprofRouter.GET("/symbol", gin.WrapF(pprof.Symbol))
			pprofRouter.GET("/trace", gin.WrapF(pprof.Trace))
			pprofRouter.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
			pprofRouter.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
			pprofRouter.GET("/heap", gin.WrapH(pprof.Handler("heap")))
		}
	}

	return router
}
