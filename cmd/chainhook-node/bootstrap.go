package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"chainhook/core"
)

// loadBootstrapPredicates reads every *.yaml/*.yml file in dir as a
// PredicateInstance document and registers it with observer, so an operator
// can ship a fleet of chainhooks alongside the binary instead of
// registering each one over HTTP after startup.
func loadBootstrapPredicates(ctx context.Context, observer *core.Observer, dir string, log *logrus.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.WithError(err).WithField("file", path).Warn("failed to read bootstrap predicate")
			continue
		}
		var p core.PredicateInstance
		if err := yaml.Unmarshal(data, &p); err != nil {
			log.WithError(err).WithField("file", path).Warn("failed to parse bootstrap predicate")
			continue
		}
		if p.UUID == "" {
			p.UUID = uuid.NewString()
		}

		reply := make(chan core.CommandResult, 1)
		cmd := core.Command{Kind: core.CmdRegisterPredicate, Predicate: &p, Reply: reply}
		if err := observer.Submit(ctx, cmd); err != nil {
			return err
		}
		res := <-reply
		if len(res.RegisterErrors) > 0 {
			log.WithField("file", path).WithField("errors", res.RegisterErrors).Warn("bootstrap predicate rejected")
			continue
		}
		for _, w := range res.RegisterWarnings {
			log.WithField("file", path).Warn(w)
		}
		log.WithField("uuid", p.UUID).WithField("file", path).Info("registered bootstrap predicate")
	}
	return nil
}
