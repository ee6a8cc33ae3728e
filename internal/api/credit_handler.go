package api

import (
	"net/http"

	"github.com/phrazzld/inkwell-api/internal/api/shared"
	"github.com/phrazzld/inkwell-api/internal/service"
)

// CreditHandler serves the caller's balance and ledger history.
type CreditHandler struct {
	generationService service.GenerationService
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(generationService service.GenerationService) *CreditHandler {
	return &CreditHandler{generationService: generationService}
}

// GetBalance handles GET /api/credits requests.
func (h *CreditHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	acct, err := h.generationService.GetBalance(r.Context(), ownerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load balance")
		return
	}

	shared.WriteJSON(w, r, http.StatusOK, BalanceResponse{
		Balance:   acct.Balance,
		Reserved:  acct.Reserved,
		Available: acct.Available(),
	})
}

// ListEntries handles GET /api/credits/entries requests.
func (h *CreditHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	entries, err := h.generationService.ListLedgerEntries(r.Context(), ownerID, limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list ledger entries")
		return
	}

	response := make([]LedgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, entryToResponse(entry))
	}
	shared.WriteJSON(w, r, http.StatusOK, response)
}
