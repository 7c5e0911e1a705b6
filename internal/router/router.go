// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/repasso/repasso-backend/internal/config"
	"github.com/repasso/repasso-backend/internal/gateway"
	"github.com/repasso/repasso-backend/internal/handlers"
	"github.com/repasso/repasso-backend/internal/middleware"
	"github.com/repasso/repasso-backend/internal/services"
	"github.com/repasso/repasso-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Warn("S3 storage unavailable, uploads fall back to local mode")
		storageService, _ = services.NewStorageService(&config.Config{})
	}
	gatewayClient := gateway.NewAsaasClient(cfg.Gateway)

	authService := services.NewAuthService(db, cfg, notificationService)
	ticketService := services.NewTicketService(db)
	walletService := services.NewWalletService(db)
	reputationService := services.NewReputationService(db)
	transactionService := services.NewTransactionService(db, cfg, gatewayClient, walletService, reputationService, notificationService)
	paymentService := services.NewPaymentService(db, cfg, gatewayClient, transactionService)
	reconciliationService := services.NewReconciliationService(db, cfg, gatewayClient, transactionService)
	disputeService := services.NewDisputeService(db, transactionService, paymentService, reputationService, notificationService)
	withdrawalService := services.NewWithdrawalService(db, cfg, walletService, notificationService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	ticketHandler := handlers.NewTicketHandler(ticketService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	disputeHandler := handlers.NewDisputeHandler(disputeService, storageService)
	walletHandler := handlers.NewWalletHandler(walletService, withdrawalService, reputationService)
	webhookHandler := handlers.NewWebhookHandler(cfg, paymentService, reconciliationService)
	adminHandler := handlers.NewAdminHandler(db, authService, transactionService, disputeService, withdrawalService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.BaseURL))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Gateway webhook and scheduler entry points (no auth middleware;
	// they carry their own tokens)
	r.POST("/webhooks/payment", webhookHandler.PaymentWebhook)
	r.POST("/cron/reconcile", webhookHandler.Reconcile)

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
			auth.GET("/verify-email/:token", authHandler.VerifyEmail)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
			auth.PUT("/me", middleware.AuthRequired(), authHandler.UpdateProfile)
		}

		// Ticket listings
		tickets := v1.Group("/tickets")
		{
			tickets.GET("", middleware.OptionalAuth(), ticketHandler.ListTickets)
			tickets.GET("/:id", middleware.OptionalAuth(), ticketHandler.GetTicket)

			protected := tickets.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.GET("/mine", ticketHandler.MyTickets)
				protected.POST("", ticketHandler.CreateTicket)
				protected.PUT("/:id", ticketHandler.UpdateTicket)
				protected.DELETE("/:id", ticketHandler.DelistTicket)
				protected.POST("/:id/reserve", transactionHandler.Reserve)
			}
		}

		// Escrow transactions
		transactions := v1.Group("/transactions")
		transactions.Use(middleware.AuthRequired())
		{
			transactions.GET("", transactionHandler.ListTransactions)
			transactions.GET("/:id", transactionHandler.GetTransaction)
			transactions.POST("/:id/confirm", transactionHandler.SellerConfirm)
			transactions.POST("/:id/reject", transactionHandler.SellerReject)
			transactions.POST("/:id/charge", transactionHandler.RetryCharge)
			transactions.POST("/:id/confirm-entry", transactionHandler.ConfirmEntry)
		}

		// Disputes
		disputes := v1.Group("/disputes")
		disputes.Use(middleware.AuthRequired())
		{
			disputes.POST("", disputeHandler.OpenDispute)
			disputes.GET("", disputeHandler.ListDisputes)
			disputes.GET("/:id", disputeHandler.GetDispute)
			disputes.POST("/:id/messages", disputeHandler.AddMessage)
			disputes.POST("/:id/evidence", middleware.UploadRateLimit(), disputeHandler.UploadEvidence)
		}

		// Wallet
		wallet := v1.Group("/wallet")
		wallet.Use(middleware.AuthRequired())
		{
			wallet.GET("", walletHandler.GetWallet)
			wallet.GET("/statement", walletHandler.GetStatement)
			wallet.GET("/reputation", walletHandler.GetReputation)
			wallet.POST("/withdrawals", walletHandler.RequestWithdrawal)
			wallet.GET("/withdrawals", walletHandler.ListWithdrawals)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/dashboard", adminHandler.GetDashboard)
			admin.GET("/notifications", adminHandler.ListNotifications)

			adminTransactions := admin.Group("/transactions")
			{
				adminTransactions.GET("", adminHandler.ListTransactions)
			}

			adminDisputes := admin.Group("/disputes")
			{
				adminDisputes.GET("", adminHandler.ListDisputes)
				adminDisputes.POST("/:id/review", adminHandler.StartDisputeReview)
				adminDisputes.POST("/:id/resolve", adminHandler.ResolveDispute)
			}

			adminWithdrawals := admin.Group("/withdrawals")
			{
				adminWithdrawals.GET("", adminHandler.ListWithdrawals)
				adminWithdrawals.POST("/:id/process", adminHandler.ProcessWithdrawal)
				adminWithdrawals.POST("/:id/complete", adminHandler.CompleteWithdrawal)
				adminWithdrawals.POST("/:id/reject", adminHandler.RejectWithdrawal)
			}

			adminUsers := admin.Group("/users")
			{
				adminUsers.POST("/:id/verify", adminHandler.VerifyUser)
				adminUsers.POST("/:id/suspend", adminHandler.SuspendUser)
			}
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r
}
