package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/dineflow/dineflow-backend/internal/auth"
	"github.com/dineflow/dineflow-backend/internal/cart"
	"github.com/dineflow/dineflow-backend/internal/dashboard"
	"github.com/dineflow/dineflow-backend/internal/finance"
	"github.com/dineflow/dineflow-backend/internal/inventory"
	"github.com/dineflow/dineflow-backend/internal/menu"
	"github.com/dineflow/dineflow-backend/internal/pos"
	"github.com/dineflow/dineflow-backend/internal/reports"
	"github.com/dineflow/dineflow-backend/internal/settings"
	"github.com/dineflow/dineflow-backend/internal/store/postgres"
	"github.com/dineflow/dineflow-backend/internal/subscription"
	"github.com/dineflow/dineflow-backend/internal/user"
	"github.com/dineflow/dineflow-backend/pkg/database"
	"github.com/dineflow/dineflow-backend/pkg/middleware"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using system environment variables")
	}

	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	db, err := database.Connect()
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	posService := pos.NewService(postgres.New(db), log)

	// Held carts live in Redis; the POS works without it, carts just
	// won't survive a page reload.
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	carts := cart.NewStore(redisAddr(), os.Getenv("REDIS_PASSWORD"), redisDB)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := carts.Ping(ctx); err != nil {
		log.WithError(err).Warn("redis unreachable, held carts disabled")
		carts = nil
	}
	cancel()

	var cartClearer pos.CartClearer
	if carts != nil {
		cartClearer = carts
	}

	subscription.NewScheduler(db, log).Start()

	r := gin.Default()
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		authHandler := auth.NewHandler(db)
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)
		v1.POST("/auth/refresh", authHandler.RefreshToken)

		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", authHandler.GetMe)

			limitChecker := middleware.NewLimitChecker(db)

			// POS core: checkout, availability, sales, credit ledger
			posHandler := pos.NewHandler(db, posService, cartClearer)
			posHandler.RegisterRoutes(protected.Group("/pos"), limitChecker.CheckDailySalesLimit())

			if carts != nil {
				cartHandler := cart.NewHandler(carts)
				protected.GET("/cart", cartHandler.Get)
				protected.PUT("/cart", cartHandler.Save)
				protected.DELETE("/cart", cartHandler.Clear)
			}

			menuHandler := menu.NewHandler(db)
			protected.GET("/menu/categories", menuHandler.ListCategories)
			protected.POST("/menu/categories", menuHandler.CreateCategory)
			protected.GET("/menu/items", menuHandler.List)
			protected.POST("/menu/items", limitChecker.CheckMenuItemLimit(), menuHandler.Create)
			protected.GET("/menu/items/:id", menuHandler.Get)
			protected.PUT("/menu/items/:id", menuHandler.Update)
			protected.PUT("/menu/items/:id/recipe", menuHandler.ReplaceRecipe)
			protected.DELETE("/menu/items/:id", menuHandler.Delete)
			protected.PATCH("/menu/items/:id/toggle", menuHandler.ToggleActive)

			inventoryHandler := inventory.NewHandler(db)
			protected.GET("/inventory", inventoryHandler.List)
			protected.POST("/inventory", inventoryHandler.Create)
			protected.GET("/inventory/summary", inventoryHandler.GetSummary)
			protected.GET("/inventory/alerts", inventoryHandler.GetAlerts)
			protected.GET("/inventory/:id", inventoryHandler.Get)
			protected.PUT("/inventory/:id", inventoryHandler.Update)
			protected.PUT("/inventory/:id/stock", inventoryHandler.AdjustStock)
			protected.POST("/inventory/:id/lots", inventoryHandler.ReceiveLot)

			importHandler := inventory.NewImportHandler(db)
			protected.POST("/inventory/import", importHandler.ImportFile)
			protected.GET("/inventory/import/template", importHandler.DownloadTemplate)

			dashboardHandler := dashboard.NewHandler(db)
			protected.GET("/dashboard/stats", dashboardHandler.GetStats)
			protected.GET("/dashboard/top-items", dashboardHandler.GetTopMenuItems)
			protected.GET("/dashboard/recent-sales", dashboardHandler.GetRecentSales)

			financeHandler := finance.NewHandler(db)
			fin := protected.Group("/finance")
			fin.Use(middleware.RequireRole("owner", "manager"))
			fin.GET("/summary", financeHandler.GetSummary)
			fin.GET("/expenses", financeHandler.ListExpenses)
			fin.POST("/expenses", financeHandler.CreateExpense)
			fin.GET("/expenses/:id", financeHandler.GetExpense)
			fin.PUT("/expenses/:id", financeHandler.UpdateExpense)
			fin.DELETE("/expenses/:id", financeHandler.DeleteExpense)
			fin.GET("/closing-data", financeHandler.GetClosingData)
			fin.GET("/closings", financeHandler.ListClosings)
			fin.POST("/closings", financeHandler.CreateClosing)
			fin.GET("/closings/:id", financeHandler.GetClosing)
			fin.PUT("/closings/:id", financeHandler.UpdateClosing)
			fin.DELETE("/closings/:id", financeHandler.DeleteClosing)

			reportsHandler := reports.NewHandler(db)
			protected.GET("/reports/sales", reportsHandler.GetSalesReport)
			protected.GET("/reports/sales/export", reportsHandler.ExportSalesReport)
			protected.GET("/reports/menu-items", reportsHandler.GetMenuItemSalesReport)
			protected.GET("/reports/credit", reportsHandler.GetCreditReport)

			settingsHandler := settings.NewHandler(db)
			protected.GET("/settings", settingsHandler.GetSettings)
			protected.PUT("/settings", middleware.RequireRole("owner", "manager"), settingsHandler.UpdateSettings)
			protected.GET("/business", settingsHandler.GetProfile)
			protected.PUT("/business", middleware.RequireRole("owner"), settingsHandler.UpdateProfile)

			subscriptionHandler := subscription.NewHandler(db)
			protected.GET("/subscription/plans", subscriptionHandler.GetPlans)
			protected.GET("/subscription", subscriptionHandler.GetCurrent)
			protected.GET("/subscription/usage", subscriptionHandler.GetUsage)
			protected.POST("/subscription/change", middleware.RequireRole("owner"), subscriptionHandler.ChangePlan)

			userHandler := user.NewHandler(db)
			staff := protected.Group("/staff")
			staff.Use(middleware.RequireRole("owner", "manager"))
			staff.GET("", userHandler.ListStaff)
			staff.POST("", limitChecker.CheckUserLimit(), userHandler.CreateStaff)
			staff.PUT("/:id", userHandler.UpdateStaff)
			staff.DELETE("/:id", middleware.RequireRole("owner"), userHandler.DeleteStaff)
			protected.GET("/audit-logs", middleware.RequireRole("owner", "manager"), userHandler.GetAuditLogs)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.WithField("port", port).Info("server starting")
	if err := r.Run(":" + port); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
}

func redisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}
