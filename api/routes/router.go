package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/collectcart/groupbuy-backend/api/controllers"
	"github.com/collectcart/groupbuy-backend/api/middleware"
	checkoutsvc "github.com/collectcart/groupbuy-backend/internal/checkout"
	groupsvc "github.com/collectcart/groupbuy-backend/internal/groups"
	itemsvc "github.com/collectcart/groupbuy-backend/internal/items"
	"github.com/collectcart/groupbuy-backend/pkg/config"
	"github.com/collectcart/groupbuy-backend/pkg/db"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
	"github.com/collectcart/groupbuy-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	groupService groupsvc.Service,
	itemService itemsvc.Service,
	checkoutService checkoutsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", controllers.CreateGroup(groupService, logg))
			r.Get("/invite/{token}", controllers.GetGroupByInviteToken(groupService, logg))

			r.Route("/{groupId}", func(r chi.Router) {
				r.Get("/", controllers.GetGroup(groupService, logg))
				r.Post("/join", controllers.JoinGroup(groupService, logg))
				r.Post("/leave", controllers.LeaveGroup(groupService, logg))
				r.Put("/address", controllers.AssignAddress(groupService, logg))
				r.Post("/lock", controllers.LockGroup(groupService, logg))
				r.Post("/unlock", controllers.UnlockGroup(groupService, logg))

				r.Route("/items", func(r chi.Router) {
					r.Post("/", controllers.AddItem(itemService, logg))
					r.Patch("/{itemId}", controllers.UpdateItem(itemService, logg))
					r.Delete("/{itemId}", controllers.RemoveItem(itemService, logg))
				})

				r.Route("/checkout", func(r chi.Router) {
					r.Post("/host", controllers.HostCheckout(checkoutService, logg))
					r.Post("/member", controllers.MemberCheckout(checkoutService, logg))
				})
			})
		})
	})

	return r
}
