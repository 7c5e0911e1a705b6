// internal/services/ticket_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repasso/repasso-backend/internal/models"
	"github.com/repasso/repasso-backend/internal/utils"
)

func newTicketService(t *testing.T) (*TicketService, *testEnv) {
	env := newTestEnv(t)
	return NewTicketService(env.db), env
}

func TestTicketCreate(t *testing.T) {
	tickets, env := newTicketService(t)
	seller := env.createUser(t, "anunciante")

	ticket, err := tickets.Create(seller.ID, &CreateTicketRequest{
		EventName: "Lollapalooza",
		EventDate: time.Now().Add(60 * 24 * time.Hour),
		Venue:     "Autódromo de Interlagos",
		Price:     dec("450.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusAvailable, ticket.Status)
}

func TestTicketCreateValidation(t *testing.T) {
	tickets, env := newTicketService(t)
	seller := env.createUser(t, "anunciante")

	_, err := tickets.Create(seller.ID, &CreateTicketRequest{
		EventName: "Show de ontem",
		EventDate: time.Now().Add(-24 * time.Hour),
		Price:     dec("100.00"),
	})
	assert.ErrorIs(t, err, ErrEventInPast)

	_, err = tickets.Create(seller.ID, &CreateTicketRequest{
		EventName: "Show de graça",
		EventDate: time.Now().Add(24 * time.Hour),
		Price:     dec("0"),
	})
	assert.Error(t, err)
}

func TestTicketUpdateFrozenAfterReservation(t *testing.T) {
	tickets, env := newTicketService(t)
	seller := env.createUser(t, "anunciante")
	buyer := env.createUser(t, "interessado")
	ticket := env.createTicket(t, seller, "100.00")

	price := dec("120.00")
	updated, err := tickets.Update(seller.ID, ticket.ID, &UpdateTicketRequest{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "120.00", updated.Price.StringFixed(2))

	_, err = env.transactions.Reserve(buyer.ID, ticket.ID, models.BillingTypePix)
	require.NoError(t, err)

	// A price change mid-escrow would desync the agreed amount.
	_, err = tickets.Update(seller.ID, ticket.ID, &UpdateTicketRequest{Price: &price})
	assert.ErrorIs(t, err, ErrTicketNotEditable)
}

func TestTicketUpdateOwnerOnly(t *testing.T) {
	tickets, env := newTicketService(t)
	seller := env.createUser(t, "anunciante")
	other := env.createUser(t, "outro")
	ticket := env.createTicket(t, seller, "100.00")

	_, err := tickets.Update(other.ID, ticket.ID, &UpdateTicketRequest{Venue: "Outro lugar"})
	assert.ErrorIs(t, err, ErrNotTicketOwner)
}

func TestTicketDelist(t *testing.T) {
	tickets, env := newTicketService(t)
	seller := env.createUser(t, "anunciante")
	ticket := env.createTicket(t, seller, "100.00")

	require.NoError(t, tickets.Delist(seller.ID, ticket.ID))
	assert.Equal(t, models.TicketStatusCancelled, env.reloadTicket(t, ticket.ID).Status)

	// Already gone; the conditional write loses.
	assert.ErrorIs(t, tickets.Delist(seller.ID, ticket.ID), ErrTicketNotEditable)
}

func TestTicketListFiltersAndSearch(t *testing.T) {
	tickets, env := newTicketService(t)
	seller := env.createUser(t, "anunciante")

	env.createTicket(t, seller, "100.00") // "Festival de Verão"
	reserved := env.createTicket(t, seller, "150.00")
	require.NoError(t, env.db.Model(reserved).Update("status", models.TicketStatusReserved).Error)

	rock := env.createTicket(t, seller, "200.00")
	require.NoError(t, env.db.Model(rock).Update("event_name", "Rock in Rio").Error)

	listed, total, err := tickets.List(utils.PaginationParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, listed, 2)

	// Case-insensitive search over event name and venue.
	listed, total, err = tickets.List(utils.PaginationParams{Page: 1, Limit: 10, Search: "rock IN"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, listed, 1)
	assert.Equal(t, "Rock in Rio", listed[0].EventName)
}

func TestTicketListForSellerIncludesAllStatuses(t *testing.T) {
	tickets, env := newTicketService(t)
	seller := env.createUser(t, "anunciante")

	env.createTicket(t, seller, "100.00")
	sold := env.createTicket(t, seller, "150.00")
	require.NoError(t, env.db.Model(sold).Update("status", models.TicketStatusSold).Error)

	_, total, err := tickets.ListForSeller(seller.ID, utils.PaginationParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}
