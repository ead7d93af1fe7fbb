package pagination

import "testing"

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2024-03-10T12:00:00Z"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cursor, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cursor.ID != "42" || cursor.CreatedAt != "2024-03-10T12:00:00Z" {
		t.Fatalf("unexpected cursor %+v", cursor)
	}

	if _, err := DecodeCursor("%%%not-base64%%%"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestBuildCursorPageInfo(t *testing.T) {
	type row struct{ ID string }
	extract := func(r *row) string { return r.ID }

	info := BuildCursorPageInfo(nil, 2, extract)
	if info.HasMore || info.NextPageToken != "" {
		t.Fatalf("empty input: %+v", info)
	}

	rows := []*row{{"a"}, {"b"}, {"c"}}
	info = BuildCursorPageInfo(rows, 2, extract)
	if !info.HasMore {
		t.Fatalf("expected has_more with overflow row")
	}
	if info.NextPageToken != "b" {
		t.Fatalf("expected cursor from last kept row, got %q", info.NextPageToken)
	}

	info = BuildCursorPageInfo(rows[:2], 2, extract)
	if info.HasMore {
		t.Fatalf("expected no more pages")
	}
}
