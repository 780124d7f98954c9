package presale

import (
	"fmt"
	"strconv"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
)

const (
	LogKindInitialized   = "presale.initialized"
	LogKindPurchase      = "presale.purchase"
	LogKindConfigUpdated = "presale.config_updated"

	EventTypeInitialized   = LogKindInitialized
	EventTypePurchase      = LogKindPurchase
	EventTypeConfigUpdated = LogKindConfigUpdated
)

// PurchaseEvent is emitted for every accepted purchase.
type PurchaseEvent struct {
	Purchase Purchase
}

func (PurchaseEvent) EventType() string { return EventTypePurchase }

// Event returns the attribute form of the purchase.
func (e PurchaseEvent) Event() *types.Event {
	p := e.Purchase
	return &types.Event{
		Type: EventTypePurchase,
		Attributes: map[string]string{
			"buyer":            p.Buyer.String(),
			"currency":         p.Currency(),
			"stableAmount":     strconv.FormatUint(p.StableAmount, 10),
			"nativeAmount":     strconv.FormatUint(p.NativeAmount, 10),
			"allocationAmount": strconv.FormatUint(p.AllocationAmount, 10),
			"timestamp":        strconv.FormatInt(p.Timestamp, 10),
		},
	}
}

// ConfigEvent is emitted when the configuration is created or changed.
type ConfigEvent struct {
	Kind      string
	Config    Config
	Timestamp int64
}

func (e ConfigEvent) EventType() string { return e.Kind }

// Event returns the attribute form of the configuration snapshot.
func (e ConfigEvent) Event() *types.Event {
	return &types.Event{
		Type: e.Kind,
		Attributes: map[string]string{
			"admin":               e.Config.Admin.String(),
			"treasury":            e.Config.Treasury.String(),
			"acceptedStableAsset": e.Config.AcceptedStableAsset.String(),
			"paused":              strconv.FormatBool(e.Config.Paused),
			"timestamp":           strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// DecodeRecord turns a presale log record back into its typed event.
func DecodeRecord(rec types.LogRecord) (interface {
	EventType() string
	Event() *types.Event
}, error) {
	switch rec.Kind {
	case LogKindPurchase:
		p, err := DecodePurchase(rec.Payload)
		if err != nil {
			return nil, err
		}
		return PurchaseEvent{Purchase: *p}, nil
	case LogKindInitialized, LogKindConfigUpdated:
		cfg, err := DecodeConfig(rec.Payload)
		if err != nil {
			return nil, err
		}
		return ConfigEvent{Kind: rec.Kind, Config: *cfg, Timestamp: rec.Timestamp}, nil
	default:
		return nil, fmt.Errorf("presale: unknown log kind %q", rec.Kind)
	}
}
