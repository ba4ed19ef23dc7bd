package rpc

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem"
	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/orders"
	"github.com/alphabill-org/guild/txsystem/params"
	"github.com/alphabill-org/guild/txsystem/proposals"
	"github.com/alphabill-org/guild/txsystem/treasury"
	"github.com/alphabill-org/guild/txsystem/votingpower"
	"github.com/alphabill-org/guild/types"
)

type (
	powerResponse struct {
		MemberID   uint64 `json:"memberId"`
		Height     uint64 `json:"height"`
		Power      uint64 `json:"power"`
		TotalPower uint64 `json:"totalPower"`
	}

	parameterResponse struct {
		Name  string `json:"name"`
		Value uint64 `json:"value"`
		Min   uint64 `json:"min"`
		Max   uint64 `json:"max"`
		Unit  string `json:"unit"`
	}

	// committedView makes the domain readers see only the committed state.
	committedView struct {
		s txsystem.StateReader
	}
)

func (v committedView) GetUnit(id types.UnitID, _ bool) (*state.Unit, error) {
	return v.s.GetUnit(id, true)
}

/*
GuildEndpoints registers read only JSON endpoints for the guild units: members,
orders, proposals and votes, voting power, the fund and the parameters.
*/
func GuildEndpoints(node partitionNode, obs Observability) RegistrarFunc {
	return func(r *mux.Router) {
		log := obs.Logger()
		r.HandleFunc("/members/{id}", getMember(node, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/identities/{identity}", getMemberOfIdentity(node, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/orders/{id}", getOrder(node, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/proposals/{id}", getProposal(node, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/proposals/{id}/votes/{member}", getVote(node, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/power/{id}", getPower(node, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/fund", getFund(node, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/parameters", getParameters(node, log)).Methods(http.MethodGet, http.MethodOptions)
	}
}

func getMember(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUint(mux.Vars(r), "id")
		if err != nil {
			writeJSONError(w, err, http.StatusBadRequest, log)
			return
		}
		writeUnit[*membership.Member](w, node, membership.NewMemberID(id), log)
	}
}

func getMemberOfIdentity(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var identity types.Identity
		if err := identity.UnmarshalText([]byte(mux.Vars(r)["identity"])); err != nil {
			writeJSONError(w, fmt.Errorf("invalid identity: %w", err), http.StatusBadRequest, log)
			return
		}
		idx, err := readUnit[*membership.IdentityIndex](node, membership.NewIdentityID(identity))
		if err != nil {
			writeJSONError(w, fmt.Errorf("identity %s: %w", identity, err), statusCodeOf(err), log)
			return
		}
		writeUnit[*membership.Member](w, node, membership.NewMemberID(idx.MemberID), log)
	}
}

func getOrder(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUint(mux.Vars(r), "id")
		if err != nil {
			writeJSONError(w, err, http.StatusBadRequest, log)
			return
		}
		writeUnit[*orders.Order](w, node, orders.NewOrderID(id), log)
	}
}

func getProposal(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUint(mux.Vars(r), "id")
		if err != nil {
			writeJSONError(w, err, http.StatusBadRequest, log)
			return
		}
		writeUnit[*proposals.Proposal](w, node, proposals.NewProposalID(id), log)
	}
}

func getVote(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id, err := parseUint(vars, "id")
		if err != nil {
			writeJSONError(w, err, http.StatusBadRequest, log)
			return
		}
		member, err := parseUint(vars, "member")
		if err != nil {
			writeJSONError(w, err, http.StatusBadRequest, log)
			return
		}
		writeUnit[*proposals.Receipt](w, node, proposals.NewReceiptID(id, member), log)
	}
}

/*
getPower returns the voting power of the member and the total power at the
height given by the "height" query parameter, the latest committed round by
default.
*/
func getPower(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUint(mux.Vars(r), "id")
		if err != nil {
			writeJSONError(w, err, http.StatusBadRequest, log)
			return
		}
		s := node.TransactionSystemState()
		height := s.CommittedRound()
		if h := r.URL.Query().Get("height"); h != "" {
			if height, err = strconv.ParseUint(h, 10, 64); err != nil {
				writeJSONError(w, fmt.Errorf("invalid height %q: %w", h, err), http.StatusBadRequest, log)
				return
			}
		}

		ledger := votingpower.NewLedger(committedView{s: s})
		power, err := ledger.PowerAt(id, height)
		if err != nil {
			writeJSONError(w, err, statusCodeOf(err), log)
			return
		}
		total, err := ledger.TotalAt(height)
		if err != nil {
			writeJSONError(w, err, statusCodeOf(err), log)
			return
		}
		writeJSONResponse(w, &powerResponse{MemberID: id, Height: height, Power: power, TotalPower: total}, http.StatusOK, log)
	}
}

func getFund(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeUnit[*treasury.Fund](w, node, treasury.FundID, log)
	}
}

func getParameters(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		values, err := params.Load(committedView{s: node.TransactionSystemState()})
		if err != nil {
			writeJSONError(w, err, http.StatusInternalServerError, log)
			return
		}
		var rsp []*parameterResponse
		for _, p := range params.All() {
			def := p.Definition()
			rsp = append(rsp, &parameterResponse{
				Name:  def.Name,
				Value: values.Get(p),
				Min:   def.Min,
				Max:   def.Max,
				Unit:  def.Unit,
			})
		}
		writeJSONResponse(w, rsp, http.StatusOK, log)
	}
}

func writeUnit[T state.UnitData](w http.ResponseWriter, node partitionNode, id types.UnitID, log *slog.Logger) {
	data, err := readUnit[T](node, id)
	if err != nil {
		writeJSONError(w, fmt.Errorf("unit %s: %w", id, err), statusCodeOf(err), log)
		return
	}
	writeJSONResponse(w, data, http.StatusOK, log)
}

func readUnit[T state.UnitData](node partitionNode, id types.UnitID) (T, error) {
	var data T
	u, err := node.TransactionSystemState().GetUnit(id, true)
	if err != nil {
		return data, err
	}
	data, ok := u.Data().(T)
	if !ok {
		return data, errors.New("unexpected unit data type")
	}
	return data, nil
}

func parseUint(vars map[string]string, name string) (uint64, error) {
	v, err := strconv.ParseUint(vars[name], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, vars[name], err)
	}
	return v, nil
}
