package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/alphabill-org/guild/types"
)

const (
	pathTransactions         = "/transactions"
	pathGetTransactionRecord = "/transactions/{txOrderHash}"
	pathLatestRoundNumber    = "/rounds/latest"
	pathGetBlock             = "/blocks/{round}"
	pathState                = "/state"
)

type (
	transactionRecordResponse struct {
		_            struct{} `cbor:",toarray"`
		TxRecord     *types.TransactionRecord
		RoundNumber  uint64
		TxOrderIndex int
	}

	stateResponse struct {
		PartitionID types.PartitionID `json:"partitionId"`
		Round       uint64            `json:"round"`
		StateHash   types.Bytes       `json:"stateHash"`
	}
)

func NodeEndpoints(node partitionNode, obs Observability) RegistrarFunc {
	return func(r *mux.Router) {
		log := obs.Logger()
		txReceived := metricsUpdaterTxReceived(obs.Meter(metricsScopeRESTAPI), node, log)

		// submit transaction
		r.HandleFunc(pathTransactions, submitTransaction(node, txReceived, log)).Methods(http.MethodPost, http.MethodOptions)

		// get transaction record
		r.HandleFunc(pathGetTransactionRecord, getTransactionRecord(node, log)).Methods(http.MethodGet, http.MethodOptions)

		r.HandleFunc(pathLatestRoundNumber, getLatestRoundNumber(node, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc(pathGetBlock, getBlock(node, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc(pathState, getState(node, log)).Methods(http.MethodGet, http.MethodOptions)
	}
}

func submitTransaction(node partitionNode, txReceived func(ctx context.Context, txType string, apiErr error), log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(r.Body); err != nil {
			writeCBORError(w, fmt.Errorf("reading request body failed: %w", err), http.StatusBadRequest, log)
			return
		}

		tx := &types.TransactionOrder{}
		if err := types.Cbor.Unmarshal(buf.Bytes(), tx); err != nil {
			txReceived(r.Context(), "", err)
			writeCBORError(w, fmt.Errorf("unable to decode request body as transaction: %w", err), http.StatusBadRequest, log)
			return
		}
		txOrderHash, err := node.SubmitTx(r.Context(), tx)
		txReceived(r.Context(), tx.PayloadType(), err)
		if err != nil {
			writeCBORError(w, err, http.StatusBadRequest, log)
			return
		}
		writeCBORResponse(w, types.Bytes(txOrderHash), http.StatusAccepted, log)
	}
}

func getTransactionRecord(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txOrder := mux.Vars(r)["txOrderHash"]
		txOrderHash, err := hex.DecodeString(txOrder)
		if err != nil {
			writeCBORError(w, fmt.Errorf("invalid tx order hash: %s", txOrder), http.StatusBadRequest, log)
			return
		}
		txRecord, index, err := node.GetTransactionRecord(r.Context(), txOrderHash)
		if err != nil {
			writeCBORError(w, err, statusCodeOf(err), log)
			return
		}
		writeCBORResponse(w, &transactionRecordResponse{
			TxRecord:     txRecord,
			RoundNumber:  index.RoundNumber,
			TxOrderIndex: index.TxOrderIndex,
		}, http.StatusOK, log)
	}
}

func getLatestRoundNumber(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeCBORResponse(w, node.LatestBlockNumber(), http.StatusOK, log)
	}
}

func getBlock(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		round, err := strconv.ParseUint(mux.Vars(r)["round"], 10, 64)
		if err != nil {
			writeCBORError(w, fmt.Errorf("invalid round number: %w", err), http.StatusBadRequest, log)
			return
		}
		b, err := node.GetBlock(r.Context(), round)
		if err != nil {
			writeCBORError(w, err, statusCodeOf(err), log)
			return
		}
		writeCBORResponse(w, b, http.StatusOK, log)
	}
}

func getState(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := node.TransactionSystemState()
		writeJSONResponse(w, &stateResponse{
			PartitionID: node.PartitionID(),
			Round:       s.CommittedRound(),
			StateHash:   s.CommittedHash(),
		}, http.StatusOK, log)
	}
}
