package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/providers"
)

const maxLinkBody = 1 << 16

type createLinkRequest struct {
	Provider     credentials.Provider `json:"provider"`
	PublicToken  string               `json:"public_token"`
	AccessToken  string               `json:"access_token"`
	EnrollmentID string               `json:"enrollment_id"`
}

type linkResponse struct {
	ID              string               `json:"id"`
	Provider        credentials.Provider `json:"provider"`
	InstitutionID   string               `json:"institution_id,omitempty"`
	InstitutionName string               `json:"institution_name,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	Accounts        []providers.Account  `json:"accounts"`
}

// writeUpstreamError maps a failed single upstream operation to a response. Only the log gets
// the aggregator's details.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var upstream *providers.UpstreamError
	switch {
	case errors.Is(err, providers.ErrInvalidLinkRequest):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &upstream):
		slog.Error(op+" failed", "provider", upstream.Provider, "status", upstream.StatusCode, "code", upstream.Code, "error", err, "request_id", RequestIDFrom(r.Context()))
		WriteError(w, http.StatusBadGateway, "Bank provider request failed")
	default:
		slog.Error(op+" failed", "error", err, "request_id", RequestIDFrom(r.Context()))
		WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) handleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	if s.linkTokens == nil {
		WriteError(w, http.StatusNotFound, "Plaid is not enabled")
		return
	}

	token, err := s.linkTokens.CreateLinkToken(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeUpstreamError(w, r, "create link token", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"link_token": token})
}

// handleCreateLink exchanges the result of the client side link flow for a durable
// credential and stores it for the configured environment.
func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFrom(r.Context())

	var req createLinkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLinkBody)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	linker, ok := s.linkers[req.Provider]
	if !ok {
		WriteError(w, http.StatusBadRequest, "Unknown provider")
		return
	}

	link, err := linker.Link(r.Context(), providers.LinkRequest{
		PublicToken:  req.PublicToken,
		AccessToken:  req.AccessToken,
		EnrollmentID: req.EnrollmentID,
	})
	if err != nil {
		writeUpstreamError(w, r, "link account", err)
		return
	}

	cred := &credentials.Credential{
		UserID:          userID,
		AccessToken:     link.AccessToken,
		ItemID:          link.ItemID,
		InstitutionID:   link.InstitutionID,
		ServiceProvider: req.Provider,
		Environment:     s.cfg.Environment,
	}
	if err := s.store.Create(r.Context(), cred); err != nil {
		writeUpstreamError(w, r, "store credential", err)
		return
	}

	slog.Info("linked account", "user_id", userID, "credential_id", cred.ID, "provider", cred.ServiceProvider, "institution_id", cred.InstitutionID)
	WriteJSON(w, http.StatusCreated, map[string]string{"id": cred.ID})
}

// handleListLinks returns the user's links with their accounts. Links whose accounts cannot
// be listed are skipped.
func (s *Server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFrom(r.Context())

	creds, err := s.store.ListForUser(r.Context(), userID, s.cfg.Environment)
	if err != nil {
		slog.Error("failed to list credentials", "user_id", userID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to list links")
		return
	}

	results := make([]*linkResponse, len(creds))
	var g errgroup.Group
	g.SetLimit(max(s.cfg.Fetch.MaxConcurrent, 1))
	for i, cred := range creds {
		g.Go(func() error {
			adapter, err := s.fetcher.Adapter(cred.ServiceProvider)
			if err != nil {
				slog.Warn("skipping link", "credential_id", cred.ID, "error", err)
				return nil
			}

			accounts, err := adapter.ListAccounts(r.Context(), cred)
			if err != nil {
				slog.Warn("skipping link, failed to list accounts", "credential_id", cred.ID, "provider", cred.ServiceProvider, "error", err)
				return nil
			}

			if accounts == nil {
				accounts = []providers.Account{}
			}

			link := &linkResponse{
				ID:            cred.ID,
				Provider:      cred.ServiceProvider,
				InstitutionID: cred.InstitutionID,
				CreatedAt:     cred.CreatedAt,
				Accounts:      accounts,
			}
			if len(accounts) > 0 {
				link.InstitutionName = accounts[0].InstitutionName
			}
			results[i] = link
			return nil
		})
	}
	_ = g.Wait()

	links := []linkResponse{}
	for _, l := range results {
		if l != nil {
			links = append(links, *l)
		}
	}

	WriteJSON(w, http.StatusOK, links)
}

func (s *Server) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFrom(r.Context())
	id := r.PathValue("id")

	if err := s.store.Delete(r.Context(), userID, id); err != nil {
		slog.Error("failed to delete credential", "user_id", userID, "credential_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to delete link")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
