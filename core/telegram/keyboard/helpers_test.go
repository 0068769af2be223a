package keyboard

import "testing"

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	rows := Chunk(items, 2)
	if len(rows) != 3 || len(rows[2]) != 1 || rows[2][0] != 5 {
		t.Fatalf("unexpected rows %v", rows)
	}
	if rows := Chunk(items, 0); len(rows) != 5 {
		t.Fatalf("expected one item per row, got %v", rows)
	}
	if rows := Chunk([]int(nil), 3); len(rows) != 0 {
		t.Fatalf("expected no rows, got %v", rows)
	}
}

func TestInlineButtonsRowsKeepsRawData(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "Accept abc123", Data: "accept:abc123:7"}, {Text: "Decline abc123", Data: "decline:abc123:7"}},
	)
	if len(m.InlineKeyboard) != 1 || len(m.InlineKeyboard[0]) != 2 {
		t.Fatalf("unexpected keyboard %+v", m.InlineKeyboard)
	}
	if got := m.InlineKeyboard[0][0].Data; got != "accept:abc123:7" {
		t.Fatalf("callback data rewritten: %q", got)
	}
}

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons([]string{"📝 New ride", "🚖 My trips"}, []string{"ℹ️ Help"})
	if !m.ResizeKeyboard || len(m.ReplyKeyboard) != 2 || m.ReplyKeyboard[0][1].Text != "🚖 My trips" {
		t.Fatalf("unexpected reply keyboard %+v", m.ReplyKeyboard)
	}
}
