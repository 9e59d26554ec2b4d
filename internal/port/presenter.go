package port

import "github.com/rl1809/storefront/internal/core/domain"

// Presenter receives what the core wants shown. It owns rendering and view
// state; the core only supplies messages and view transitions.
type Presenter interface {
	Advise(message string)
	Navigate(view domain.View)
}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) Advise(string) {}

func (NopPresenter) Navigate(domain.View) {}

// CatalogStatusPresenter is a Presenter that keeps catalog advisories until
// the catalog loads again. CatalogLoaded is called after every good snapshot.
type CatalogStatusPresenter interface {
	Presenter
	CatalogLoaded()
}
