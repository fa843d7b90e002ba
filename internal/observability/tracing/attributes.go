package tracing

import (
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys shared by the chain adapter, the engine and the poller.
const (
	AttrEventKind   = attribute.Key("claimsync.event.kind")
	AttrTxHash      = attribute.Key("claimsync.tx_hash")
	AttrBlockNumber = attribute.Key("claimsync.block_number")
	AttrLogIndex    = attribute.Key("claimsync.log_index")
	AttrOutcome     = attribute.Key("claimsync.outcome")
)

var piiFragments = []string{
	"national_id",
	"email",
	"phone",
	"full_name",
	"authorization",
	"token",
	"secret",
}

// EventAttributes describes one on-chain event on a span.
func EventAttributes(kind, txHash string, block uint64, logIndex uint) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEventKind.String(kind),
		AttrTxHash.String(strings.ToLower(txHash)),
		AttrBlockNumber.Int64(int64(block)),
		AttrLogIndex.Int64(int64(logIndex)),
	}
}

// SafeAttributes drops attributes whose keys could carry payer PII or credentials.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := attrs[:0:0]
	for _, attr := range attrs {
		key := strings.ToLower(string(attr.Key))
		keep := true
		for _, fragment := range piiFragments {
			if strings.Contains(key, fragment) {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}

// SafeError reduces err to something safe to export. The innermost error is
// kept when it is a snake_case sentinel, otherwise only its type is reported.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	root := err
	for {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}
	if isSentinelCode(root.Error()) {
		return errors.New(root.Error())
	}
	return fmt.Errorf("%T", root)
}

func isSentinelCode(msg string) bool {
	if msg == "" {
		return false
	}
	for _, r := range msg {
		if (r < 'a' || r > 'z') && r != '_' {
			return false
		}
	}
	return true
}
