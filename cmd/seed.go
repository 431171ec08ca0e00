package main

import (
	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/repository"
)

// Идентификатор организации демонстрационного набора.
const demoEntity = "11111111-1111-1111-1111-111111111111"

// seedMemoryStore заполняет хранилище в памяти демонстрационными пользователями и поставщиками.
func seedMemoryStore(store *repository.MemoryStore) {
	for _, username := range []string{"creator", "donor", "supervisor", "admin", "acme_user", "solo_user"} {
		store.AddUser(username)
	}
	store.AddResponsible("creator", demoEntity)
	store.AddBidActor("admin", "", models.Administrator)
	store.AddBidActor("donor", "", models.Donor)
	store.AddBidActor("supervisor", "", models.SupervisingBody)

	store.AddProvider(models.Provider{
		ID:      "acme",
		Name:    "Acme Construction",
		Ref:     models.PurchaserRef{Kind: models.Company, ID: "acme-co"},
		Sectors: []string{"construction", "roads"},
	}, "acme_user")
	store.AddProvider(models.Provider{
		ID:      "solo",
		Name:    "Solo Consulting",
		Ref:     models.PurchaserRef{Kind: models.Freelancer, ID: "solo-fl"},
		Sectors: []string{"consulting"},
	}, "solo_user")
}
