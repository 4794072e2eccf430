package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/service"
	"github.com/kader009/trustedge-backend/pkg/health"
	"github.com/kader009/trustedge-backend/pkg/middleware"
)

// publicCacheSeconds is the max-age for anonymous catalog reads.
const publicCacheSeconds = 60

// Services bundles the application services the router dispatches to.
type Services struct {
	Users      *service.UserService
	Categories *service.CategoryService
	Products   *service.ProductService
	Reviews    *service.ReviewService
	Comments   *service.CommentService
	Votes      *service.VoteService
	Recalc     *service.Recalculator
}

// RouterConfig holds the cross-cutting pieces of the HTTP surface.
type RouterConfig struct {
	ServiceName string
	Tokens      middleware.TokenValidator
	CORS        middleware.CORSConfig
	Cookies     CookieConfig
	RateLimiter *middleware.RateLimiter
	Health      *health.Handler
}

// NewRouter creates a chi router with all API routes registered.
func NewRouter(svc Services, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check and metrics endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	authHandler := NewAuthHandler(svc.Users, cfg.Cookies, logger)
	userHandler := NewUserHandler(svc.Users, logger)
	catalogHandler := NewCatalogHandler(svc.Categories, svc.Products, logger)
	reviewHandler := NewReviewHandler(svc.Reviews, svc.Votes, svc.Recalc, logger)
	commentHandler := NewCommentHandler(svc.Comments, logger)

	requireAuth := middleware.Auth(cfg.Tokens)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.Tokens))
		r.Use(middleware.RequestLogger(logger))
		r.Use(ContentTypeJSON)
		r.Use(limitWrites(cfg.RateLimiter))

		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Use(requireAuth, middleware.NoStore)

			r.Get("/", userHandler.Me)
			r.Put("/", userHandler.UpdateProfile)
			r.Patch("/password", userHandler.UpdatePassword)
		})

		r.Route("/categories", func(r chi.Router) {
			r.With(middleware.CacheControl(publicCacheSeconds)).Get("/", catalogHandler.ListActiveCategories)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, RequireRole(domain.RoleAdmin))

				r.Post("/", catalogHandler.CreateCategory)
				r.Get("/{id}", catalogHandler.GetCategory)
				r.Put("/{id}", catalogHandler.UpdateCategory)
				r.Delete("/{id}", catalogHandler.DeleteCategory)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.With(middleware.CacheControl(publicCacheSeconds)).Get("/", catalogHandler.ListProducts)
			r.With(middleware.CacheControl(publicCacheSeconds)).Get("/{idOrSlug}", catalogHandler.GetProduct)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, RequireRole(domain.RoleAdmin, domain.RoleStaff))

				r.Post("/", catalogHandler.CreateProduct)
				r.Put("/{id}", catalogHandler.UpdateProduct)
				r.Delete("/{id}", catalogHandler.DeleteProduct)
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", reviewHandler.ListReviews)
			r.Get("/search", reviewHandler.SearchReviews)
			r.Get("/premium", reviewHandler.ListPremiumReviews)
			r.Get("/{id}", reviewHandler.GetReview)
			r.Get("/{id}/preview", reviewHandler.GetReviewPreview)
			r.Get("/{id}/comments", commentHandler.GetReviewComments)
			r.Get("/{id}/comments/count", commentHandler.GetCommentCount)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, RequireRole(domain.RoleUser, domain.RoleAdmin))

				r.Post("/", reviewHandler.CreateReview)
				r.Patch("/{id}", reviewHandler.UpdateReview)
				r.Delete("/{id}", reviewHandler.DeleteReview)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Get("/{id}/vote", reviewHandler.GetMyVote)
				r.Put("/{id}/vote", reviewHandler.CastVote)
				r.Delete("/{id}/vote", reviewHandler.RemoveVote)
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.Get("/{id}", commentHandler.GetComment)
			r.Get("/{id}/replies", commentHandler.GetCommentReplies)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Get("/mine", commentHandler.GetMyComments)
				r.Post("/", commentHandler.CreateComment)
				r.Put("/{id}", commentHandler.UpdateComment)
				r.Delete("/{id}", commentHandler.DeleteComment)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, RequireRole(domain.RoleAdmin), middleware.NoStore)

			r.Get("/users", userHandler.ListUsers)
			r.Get("/users/{id}", userHandler.GetUser)
			r.Put("/users/{id}", userHandler.UpdateUser)
			r.Delete("/users/{id}", userHandler.DeleteUser)

			r.Get("/categories", catalogHandler.ListAllCategories)

			r.Get("/reviews/pending", reviewHandler.ListPendingReviews)
			r.Get("/reviews/status/{status}", reviewHandler.ListReviewsByStatus)
			r.Patch("/reviews/{id}/approve", reviewHandler.ApproveReview)
			r.Patch("/reviews/{id}/unpublish", reviewHandler.UnpublishReview)
			r.Post("/reviews/recalculate", reviewHandler.RecalculateAll)
			r.Post("/reviews/recalculate/{productId}", reviewHandler.RecalculateProduct)

			r.Delete("/comments/{id}", commentHandler.HardDeleteComment)
		})
	})

	return r
}
