package pagination

import "testing"

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2024-01-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cursor, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cursor == nil || cursor.ID != "42" {
		t.Fatalf("unexpected cursor %+v", cursor)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	if _, err := DecodeCursor("%%%"); err != ErrInvalidPageToken {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
	cursor, err := DecodeCursor("")
	if err != nil || cursor != nil {
		t.Fatalf("expected empty token to decode to nil, got %+v %v", cursor, err)
	}
}

func TestBuildCursorPageInfo(t *testing.T) {
	items := []int{1, 2, 3}
	info := BuildCursorPageInfo(items, 2, func(v int) string {
		if v == 2 {
			return "two"
		}
		return "other"
	})
	if !info.HasMore || info.NextPageToken != "two" {
		t.Fatalf("unexpected page info %+v", info)
	}

	info = BuildCursorPageInfo(items, 3, func(int) string { return "x" })
	if info.HasMore {
		t.Fatalf("expected no more pages")
	}
}

func TestSizeClamps(t *testing.T) {
	if got := (Pagination{}).Size(); got != DefaultPageSize {
		t.Fatalf("expected default size, got %d", got)
	}
	if got := (Pagination{PageSize: 1000}).Size(); got != MaxPageSize {
		t.Fatalf("expected max size, got %d", got)
	}
}
