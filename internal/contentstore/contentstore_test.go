package contentstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func sampleSummary() Summary {
	return Summary{
		Buyer: BuyerSummary{
			ID:            "1",
			FullName:      "Siti Rahma",
			Email:         "siti@example.com",
			WalletAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
			NationalID:    "3201010101010001",
		},
		Premium: PremiumSummary{
			TransactionHash: "0xaa",
			AmountETH:       "2.5",
			BlockNumber:     12,
			BlockTimestamp:  time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC),
			Status:          "confirmed",
			PolicyNumber:    "POL-ABCDEF12",
		},
	}
}

func TestSummaryRedacted(t *testing.T) {
	redacted := sampleSummary().Redacted()
	if strings.Contains(redacted.Buyer.Email, "siti@") {
		t.Fatalf("expected email to be masked, got %s", redacted.Buyer.Email)
	}
	if strings.Contains(redacted.Buyer.NationalID, "32010101") {
		t.Fatalf("expected national id to be masked, got %s", redacted.Buyer.NationalID)
	}
	if !strings.HasSuffix(redacted.Buyer.NationalID, "0001") {
		t.Fatalf("expected last 4 digits to remain, got %s", redacted.Buyer.NationalID)
	}
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if params.Body != nil {
		f.body, _ = io.ReadAll(params.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreWritesJSONObject(t *testing.T) {
	putter := &fakePutter{}
	store := NewS3Store(putter, "claims-archive", "/premiums/")

	id, err := store.Store(context.Background(), sampleSummary())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	key := aws.ToString(putter.input.Key)
	if !strings.HasPrefix(key, "premiums/2024/03/09/") || !strings.HasSuffix(key, ".json") {
		t.Fatalf("unexpected key %s", key)
	}
	if id != "s3://claims-archive/"+key {
		t.Fatalf("unexpected content id %s", id)
	}

	var stored Summary
	if err := json.Unmarshal(putter.body, &stored); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if stored.Premium.TransactionHash != "0xaa" {
		t.Fatalf("unexpected stored summary %+v", stored)
	}
}

func TestS3StoreWrapsFailure(t *testing.T) {
	store := NewS3Store(&fakePutter{err: errors.New("access denied")}, "bucket", "")
	_, err := store.Store(context.Background(), sampleSummary())
	if !errors.Is(err, ErrContentStoreFailure) {
		t.Fatalf("expected ErrContentStoreFailure, got %v", err)
	}
}

func TestHTTPStoreReturnsCID(t *testing.T) {
	var received uploadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cid":"bafy123"}`))
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.Client(), srv.URL, "admin@example.com", "did:key:space")
	cid, err := store.Store(context.Background(), sampleSummary())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if cid != "bafy123" {
		t.Fatalf("expected bafy123, got %s", cid)
	}
	if received.Operation != "upload_premium" || received.AdminEmail != "admin@example.com" || received.SpaceDID != "did:key:space" {
		t.Fatalf("unexpected request %+v", received)
	}
}

func TestHTTPStoreFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"empty cid": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":"space not found"}`))
		},
		"garbage": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			store := NewHTTPStore(srv.Client(), srv.URL, "", "")
			if _, err := store.Store(context.Background(), sampleSummary()); !errors.Is(err, ErrContentStoreFailure) {
				t.Fatalf("expected ErrContentStoreFailure, got %v", err)
			}
		})
	}
}
