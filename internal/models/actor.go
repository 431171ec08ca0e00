package models

type ActorRole string // Роль участника

const (
	Creator         ActorRole = "Creator"         // Заказчик, создавший тендер
	ProviderRole    ActorRole = "Provider"        // Поставщик
	Donor           ActorRole = "Donor"           // Донор, финансирующий тендер
	SupervisingBody ActorRole = "SupervisingBody" // Надзорный орган
	Administrator   ActorRole = "Administrator"   // Администратор площадки
)

// Valid проверяет, что роль известна.
func (r ActorRole) Valid() bool {
	switch r {
	case Creator, ProviderRole, Donor, SupervisingBody, Administrator:
		return true
	}
	return false
}

// Actor представляет пользователя с ролью относительно конкретного тендера.
type Actor struct {
	Username string    `json:"username"`
	Role     ActorRole `json:"role"`
}
