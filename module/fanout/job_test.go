package fanout

import "testing"

func TestDecodeJobRoundTrip(t *testing.T) {
	in := &Job{
		MessageID: "m1", ChatID: "c1", ChatType: "group",
		Seq: 12, SenderID: "s1", RecipientIDs: []string{"a", "b"},
	}
	data, err := in.Encode()
	if err != nil {
		t.Fatal(err)
	}
	out, err := DecodeJob(data)
	if err != nil {
		t.Fatal(err)
	}
	if out.MessageID != in.MessageID || out.ChatID != in.ChatID || out.Seq != in.Seq {
		t.Fatalf("decoded job diverged: %+v", out)
	}
	if len(out.RecipientIDs) != 2 {
		t.Fatalf("recipients=%v", out.RecipientIDs)
	}
}

// 老生产者把 seq 发成字符串也能吃下
func TestDecodeJobWeakTyping(t *testing.T) {
	data := []byte(`{"messageId":"m1","chatId":"c1","chatType":"private","seq":"33","senderId":"s1","recipientIds":["u1"]}`)
	job, err := DecodeJob(data)
	if err != nil {
		t.Fatal(err)
	}
	if job.Seq != 33 {
		t.Fatalf("seq=%d, want 33", job.Seq)
	}
}

func TestDecodeJobRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"missing messageId", `{"chatId":"c1","seq":1}`},
		{"missing chatId", `{"messageId":"m1","seq":1}`},
		{"zero seq", `{"messageId":"m1","chatId":"c1","seq":0}`},
	}
	for _, tc := range cases {
		if _, err := DecodeJob([]byte(tc.data)); err == nil {
			t.Errorf("%s: expected decode error", tc.name)
		}
	}
}
