package rpc

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/metric"

	"github.com/alphabill-org/guild/partition"
	"github.com/alphabill-org/guild/txsystem"
	"github.com/alphabill-org/guild/types"
)

const (
	headerContentType = "Content-Type"
	applicationJson   = "application/json"
	applicationCBOR   = "application/cbor"

	metricsScopeRESTAPI = "rest_api"

	DefaultMaxBodyBytes int64 = 4194304 // 4MB
)

var allowedCORSHeaders = []string{"Accept", "Accept-Language", "Content-Language", "Origin", headerContentType}

type (
	// Registrar registers new HTTP handlers for given router.
	Registrar interface {
		Register(r *mux.Router)
	}

	// RegistrarFunc type is an adapter to allow the use of ordinary function as Registrar.
	RegistrarFunc func(r *mux.Router)

	Observability interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		Logger() *slog.Logger
	}

	// partitionNode is the API of the partition.Node used by the REST endpoints.
	partitionNode interface {
		SubmitTx(ctx context.Context, tx *types.TransactionOrder) ([]byte, error)
		GetBlock(ctx context.Context, blockNr uint64) (*types.Block, error)
		LatestBlockNumber() uint64
		GetTransactionRecord(ctx context.Context, txoHash []byte) (*types.TransactionRecord, *partition.TxIndex, error)
		TransactionSystemState() txsystem.StateReader
		PartitionID() types.PartitionID
	}
)

func NewRESTServer(addr string, maxBodySize int64, obs Observability, registrars ...Registrar) *http.Server {
	mtr := obs.Meter(metricsScopeRESTAPI)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(http.NotFound)
	apiV1Router := r.PathPrefix("/api/v1").Subrouter()
	apiV1Router.Use(handlers.CORS(handlers.AllowedHeaders(allowedCORSHeaders)), instrumentHTTP(mtr, obs.Logger()))

	for _, registrar := range registrars {
		registrar.Register(apiV1Router)
	}

	return &http.Server{
		Addr:              addr,
		ReadTimeout:       3 * time.Second,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       30 * time.Second,
		Handler:           http.MaxBytesHandler(r, maxBodySize),
	}
}

func (f RegistrarFunc) Register(r *mux.Router) {
	f(r)
}
