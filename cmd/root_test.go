package cmd

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestLoadConfigPrecedence(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "pudl.toml")
	content := "pudl-out = \"from-file\"\ndatasets = [\"eia860\", \"ferc1\"]\ntoken = \"file-token\"\n"
	if err := ioutil.WriteFile(cfg, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	out := flags.String("pudl-out", "pudl-out", "")
	datasets := flags.StringSlice("datasets", nil, "")
	token := flags.String("token", "", "")
	if err := flags.Parse([]string{"--config=" + cfg, "--pudl-out=from-flag"}); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}
	t.Setenv("PUDL_TOKEN", "env-token")

	if err := loadConfig(viper.New(), flags, "PUDL"); err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if *out != "from-flag" {
		t.Errorf("command line should beat the config file, got %q", *out)
	}
	if *token != "env-token" {
		t.Errorf("environment should beat the config file, got %q", *token)
	}
	if got := strings.Join(*datasets, ","); got != "eia860,ferc1" {
		t.Errorf("config file array should land in the slice flag, got %q", got)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	if err := flags.Parse([]string{"--config=/nonexistent/pudl.toml"}); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}
	if err := loadConfig(viper.New(), flags, "PUDL"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
