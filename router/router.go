package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/food-checkout/controllers"
	"github.com/yeremiapane/food-checkout/kds"
	"github.com/yeremiapane/food-checkout/middlewares"
	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/services"
	"gorm.io/gorm"
)

// Deps holds everything the HTTP layer needs. Services are shared with
// background workers so they are built by the caller, not here.
type Deps struct {
	DB          *gorm.DB
	Hub         *kds.Hub
	Carts       *services.CartService
	Checkout    *services.CheckoutService
	Orders      *services.OrderService
	States      *services.OrderStateMachine
	Payments    *services.PaymentService
	Invoices    *services.InvoiceService
	Signatures  controllers.SignatureValidator
	CORSOrigins []string
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(d.CORSOrigins))
	r.Use(middlewares.LoggerMiddleware())

	// Inisialisasi controller
	userCtrl := controllers.NewUserController(d.DB)
	cartCtrl := controllers.NewCartController(d.Carts)
	checkoutCtrl := controllers.NewCheckoutController(d.Checkout)
	orderCtrl := controllers.NewOrderController(d.Orders, d.States)
	paymentCtrl := controllers.NewPaymentController(d.Payments, d.Orders)
	callbackCtrl := controllers.NewPaymentCallbackController(d.Payments, d.Signatures)
	invoiceCtrl := controllers.NewInvoiceController(d.Invoices)
	kdsCtrl := controllers.NewKDSController(d.Hub, d.CORSOrigins)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Rate limiter untuk login/register
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// Notifikasi dari gateway, diverifikasi lewat signature
	r.POST("/payments/callback",
		middlewares.PaymentSecurityHeaders(),
		middlewares.LogPaymentRequest(),
		callbackCtrl.HandlePaymentCallback)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware())

	api.GET("/profile", userCtrl.GetProfile)

	// CART
	api.GET("/cart", cartCtrl.GetCart)
	api.POST("/cart/items", cartCtrl.AddItem)
	api.PATCH("/cart/items/:item_id", cartCtrl.UpdateItem)
	api.DELETE("/cart/items/:item_id", cartCtrl.RemoveItem)
	api.DELETE("/cart", cartCtrl.ClearCart)

	// CHECKOUT
	api.POST("/checkout", checkoutCtrl.Checkout)

	// ORDERS
	api.GET("/orders", orderCtrl.GetOrders)
	api.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	api.GET("/orders/:order_id/history", orderCtrl.GetOrderHistory)
	api.POST("/orders/:order_id/cancel", orderCtrl.CancelOrder)

	// INVOICES
	api.GET("/invoices/:invoice_id", invoiceCtrl.GetInvoice)
	api.GET("/invoices/:invoice_id/pdf", invoiceCtrl.GetInvoicePDF)

	// PAYMENTS
	payments := api.Group("/")
	payments.Use(middlewares.PaymentSecurityHeaders(), middlewares.PaymentRateLimiter(), middlewares.LogPaymentRequest())
	{
		payments.POST("/orders/:order_id/payments", paymentCtrl.CreatePayment)
		payments.GET("/orders/:order_id/payments", paymentCtrl.GetPayments)
		payments.POST("/payments/:payment_id/charge", paymentCtrl.ChargePayment)
	}

	// STAFF (staff/admin)
	staff := api.Group("/")
	staff.Use(middlewares.RequireRole(models.RoleStaff))
	{
		staff.POST("/orders/:order_id/deliver", orderCtrl.DeliverOrder)
		staff.POST("/payments/:payment_id/confirm-cash", middlewares.LogPaymentRequest(), paymentCtrl.ConfirmCash)
		staff.POST("/orders/:order_id/refunds", middlewares.LogPaymentRequest(), paymentCtrl.CreateRefund)
	}

	// WebSocket endpoint dengan middleware khusus
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.WebSocketAuthMiddleware())
	{
		wsGroup.GET("/:role", kdsCtrl.KDSHandler)
	}

	return r
}
