package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/alphabill-org/guild/types"
)

const (
	TxTypeKey   attribute.Key = "tx.type"
	TxHashKey   attribute.Key = "tx.hash"
	UnitIDKey   attribute.Key = "unit.id"
	UnitTypeKey attribute.Key = "unit.type"
)

func Round(round uint64) attribute.KeyValue {
	return attribute.Int64("round", int64(round)) /* #nosec G115 round numbers stay far below int64 max */
}

func TxType(typ string) attribute.KeyValue {
	return TxTypeKey.String(typ)
}

func TxHash(value []byte) attribute.KeyValue {
	return TxHashKey.String(types.Bytes(value).String())
}

// UnitID returns the ID of the unit in text form, see UnitType for the type byte.
func UnitID(id types.UnitID) attribute.KeyValue {
	return UnitIDKey.String(id.String())
}

func UnitType(id types.UnitID) attribute.KeyValue {
	if len(id) == 0 {
		return UnitTypeKey.Int(0)
	}
	return UnitTypeKey.Int(int(id[len(id)-1]))
}

func Partition(id types.PartitionID, extra ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(
		append(extra, attribute.String("partition", id.String()))...,
	))
}

/*
ErrStatus returns attribute named "status" with value "ok" if the param
err is nil and "err" when it is not.
*/
func ErrStatus(err error) attribute.KeyValue {
	status := "ok"
	if err != nil {
		status = "err"
	}
	return attribute.String("status", status)
}
