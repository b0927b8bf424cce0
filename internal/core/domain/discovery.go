package domain

// DiscoveryState est l'état de la machine du coordinateur de découverte.
// Idle -> Debouncing -> Searching -> Results ; retour à Idle quand le
// texte de recherche est vidé.
type DiscoveryState string

const (
	StateIdle       DiscoveryState = "IDLE"
	StateDebouncing DiscoveryState = "DEBOUNCING"
	StateSearching  DiscoveryState = "SEARCHING"
	StateResults    DiscoveryState = "RESULTS"
)

// UserCard est l'élément du view model consommé par le rendu :
// l'utilisateur plus le flag follow du point de vue de la session courante.
type UserCard struct {
	User        *User
	IsFollowing bool
}

// DiscoveryView est le snapshot composé : listing complet quand aucune
// requête n'est active, résultats de recherche sinon — jamais les deux.
// SearchFailed distingue "rien ne matche" de "la recherche a échoué".
type DiscoveryView struct {
	State        DiscoveryState
	Cards        []UserCard
	SearchFailed bool
}
