// Package domain holds the entity types shared by the store, registry,
// course lifecycle, and session engine. It has no behavior of its own
// beyond small accessor helpers; persistence and orchestration live in
// their owning packages.
package domain

// Team groups athletes for roster and ranking purposes.
type Team struct {
	ID          string
	Name        string
	AgeGroup    string
	Sport       string
	Coach       string
	Active      bool
}

// Athlete is a member of a Team who can be queued into a Session.
type Athlete struct {
	ID       string
	TeamID   string
	Name     string
	Jersey   string
	Age      int
	Position string
	Deleted  bool
}
