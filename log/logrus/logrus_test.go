package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/swrcache"
)

func TestFieldsAndLevels(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base, "swrcache")

	l.Debug("prefetch scheduled", swrcache.Fields{"key": "events:{page:2}"})
	l.Warn("prefetch failed", swrcache.Fields{"key": "events:{page:2}", "err": errors.New("503")})

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("entries: %d", len(entries))
	}
	if entries[0].Level != logrus.DebugLevel || entries[0].Data["key"] != "events:{page:2}" {
		t.Fatalf("debug entry: %+v", entries[0])
	}
	if entries[0].Data["component"] != "swrcache" {
		t.Fatalf("component field missing: %v", entries[0].Data)
	}
	last := hook.LastEntry()
	if last.Level != logrus.WarnLevel {
		t.Fatalf("level: %v", last.Level)
	}
	if err, ok := last.Data[logrus.ErrorKey].(error); !ok || err.Error() != "503" {
		t.Fatalf("error field: %v", last.Data)
	}
}
