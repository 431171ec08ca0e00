package router

import (
	"net/http"

	"github.com/senyabanana/tender-orchestrator/internal/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// InitRoutes собирает маршруты API.
func InitRoutes(bidHandler *handlers.BidHandler, wsHandler *handlers.WebSocketHandler, stats http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", handlers.PingHandler)
		r.Get("/ws", wsHandler.ServeWs)
		if stats != nil {
			r.Get("/dispatch/stats", stats)
		}

		r.Route("/bids", func(r chi.Router) {
			r.Post("/new", bidHandler.CreateBid)

			r.Route("/{bidId}", func(r chi.Router) {
				r.Get("/", bidHandler.GetBid)
				r.Delete("/", bidHandler.DeleteDraftBid)
				r.Get("/history", bidHandler.GetBidHistory)
				r.Get("/window", bidHandler.GetWindowStatus)
				r.Put("/status", bidHandler.UpdateBidStatus)
				r.Put("/extend", bidHandler.ExtendStoppingPeriod)

				r.Get("/eligibility", bidHandler.ResolveEligibility)
				r.Post("/purchase", bidHandler.PurchaseDocuments)
				r.Get("/receivers", bidHandler.GetNotificationReceivers)

				r.Post("/invitations", bidHandler.InviteProviders)
				r.Get("/invitations", bidHandler.GetProviderInvitationLogs)
				r.Put("/subscription", bidHandler.ToggleSubscription)
				r.Put("/reveal", bidHandler.ForceReveal)
				r.Post("/subscribe", bidHandler.Subscribe)
				r.Get("/visibility", bidHandler.GetVisibility)
				r.Post("/view", bidHandler.IncreaseViewCount)
			})
		})
	})

	return r
}
