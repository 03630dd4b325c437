package rpc

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/exadt/pkg/cluster"
	"github.com/cuemby/exadt/pkg/exaconf"
	"github.com/cuemby/exadt/pkg/log"
	"github.com/cuemby/exadt/pkg/metrics"
	"github.com/cuemby/exadt/pkg/runtime"
	"github.com/rs/zerolog"
)

// AllDatabases selects every database of the cluster
const AllDatabases = "all"

const dwadClient = "dwad_client"

// Handler controls the databases of a started cluster by running
// dwad_client in the container of the first node.
type Handler struct {
	conf   *exaconf.EXAConf
	execer runtime.Execer
	logger zerolog.Logger
}

// NewHandler creates a handler for the cluster described by conf
func NewHandler(conf *exaconf.EXAConf, execer runtime.Execer) *Handler {
	return &Handler{
		conf:   conf,
		execer: execer,
		logger: log.WithCluster(conf.ClusterName()).With().Str("component", "rpc").Logger(),
	}
}

func (h *Handler) container() (string, error) {
	ids := h.conf.NodeIDs()
	if len(ids) == 0 {
		return "", fmt.Errorf("cluster '%s' has no nodes", h.conf.ClusterName())
	}
	return cluster.ContainerName(h.conf.ClusterName(), ids[0]), nil
}

func (h *Handler) run(ctx context.Context, args ...string) (string, error) {
	id, err := h.container()
	if err != nil {
		return "", err
	}
	cmd := append([]string{dwadClient}, args...)
	res, err := h.execer.Exec(ctx, id, cmd)
	if err != nil {
		return "", fmt.Errorf("failed to run '%s' in %s: %w", strings.Join(cmd, " "), id, err)
	}
	if res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(res.Stdout)
		}
		return "", fmt.Errorf("'%s' in %s exited with %d: %s", strings.Join(cmd, " "), id, res.ExitCode, msg)
	}
	return res.Stdout, nil
}

// databases resolves name to the databases it selects
func (h *Handler) databases(name string) ([]string, error) {
	dbs, err := h.conf.Databases()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, db := range dbs {
		if name == AllDatabases || db.Name == name {
			names = append(names, db.Name)
		}
	}
	return names, nil
}

// each runs "dwad_client <action> <db>" for all selected databases. It
// returns false without error if name selects nothing.
func (h *Handler) each(ctx context.Context, action, name string) (bool, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveOperation("db_" + action)

	names, err := h.databases(name)
	if err != nil {
		return false, err
	}
	if len(names) == 0 {
		h.logger.Warn().Str("database", name).Msg("No matching database found")
		return false, nil
	}
	for _, db := range names {
		h.logger.Info().Str("database", db).Str("action", action).Msg("Running database command")
		if _, err := h.run(ctx, action, db); err != nil {
			return false, err
		}
	}
	return true, nil
}

// StartDatabase starts the named database, or all with AllDatabases, and
// waits until it is up.
func (h *Handler) StartDatabase(ctx context.Context, name string) (bool, error) {
	return h.each(ctx, "start-wait", name)
}

// StopDatabase stops the named database, or all, and waits for it
func (h *Handler) StopDatabase(ctx context.Context, name string) (bool, error) {
	return h.each(ctx, "stop-wait", name)
}

// KillDatabase forces the named database, or all, to stop
func (h *Handler) KillDatabase(ctx context.Context, name string) (bool, error) {
	return h.each(ctx, "stop-force", name)
}

// ListDatabases returns the output of "dwad_client list", or of
// "shortlist" if short is set.
func (h *Handler) ListDatabases(ctx context.Context, short bool) (string, error) {
	action := "list"
	if short {
		action = "shortlist"
	}
	return h.run(ctx, action)
}
