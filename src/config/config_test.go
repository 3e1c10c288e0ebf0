package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetDataDir(t *testing.T) {
	conf := NewDefaultConfig()
	conf.SetDataDir("/tmp/valproof")

	if conf.DatabaseDir != filepath.Join("/tmp/valproof", DefaultBadgerFile) {
		t.Fatalf("default database dir should follow datadir, got %s", conf.DatabaseDir)
	}
	if conf.Keyfile() != "/tmp/valproof/priv_key" || conf.NodeKeyfile() != "/tmp/valproof/node_key" {
		t.Fatalf("unexpected key files %s %s", conf.Keyfile(), conf.NodeKeyfile())
	}

	conf.DatabaseDir = "/data/db"
	conf.SetDataDir("/tmp/other")
	if conf.DatabaseDir != "/data/db" {
		t.Fatalf("explicit database dir should not change, got %s", conf.DatabaseDir)
	}
}

func TestDefaults(t *testing.T) {
	conf := NewDefaultConfig()

	if conf.ChannelCapacity != 32 {
		t.Fatalf("channel capacity should default to 32, not %d", conf.ChannelCapacity)
	}
	if conf.Protocol != DefaultProtocol || !conf.EnableConsensus {
		t.Fatalf("unexpected protocol defaults %s %v", conf.Protocol, conf.EnableConsensus)
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"bogus": logrus.DebugLevel,
	}
	for in, expected := range cases {
		if l := LogLevel(in); l != expected {
			t.Fatalf("LogLevel(%s) should be %s, not %s", in, expected, l)
		}
	}
}

func TestLogFile(t *testing.T) {
	dir := t.TempDir()

	conf := NewDefaultConfig()
	conf.LogLevel = "info"
	conf.LogFile = filepath.Join(dir, "valproof.log")

	conf.Logger().WithField("peer", "abc").Info("hello")

	data, err := os.ReadFile(conf.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"peer":"abc"`) {
		t.Fatalf("log file should contain the entry, got %s", data)
	}
}
