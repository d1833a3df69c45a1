package cmd

import (
	"context"
	"io"
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"

	"github.com/databacker/mysql-binlog-restore/pkg/core"
)

type mockExecs struct {
	mock.Mock
	logger *log.Logger
	// hook records what the command logs through the logger it hands over
	hook *logtest.Hook
}

func newMockExecs() *mockExecs {
	m := &mockExecs{}
	return m
}

func (m *mockExecs) SetLogger(logger *log.Logger) {
	logger.Out = io.Discard
	m.logger = logger
	m.hook = logtest.NewLocal(logger)
}

func (m *mockExecs) GetLogger() *log.Logger {
	return m.logger
}

func (m *mockExecs) Restore(ctx context.Context, opts core.RestoreOptions) (core.RestoreResults, error) {
	args := m.Called(opts)
	return core.RestoreResults{Run: opts.Run}, args.Error(0)
}

func (m *mockExecs) List(ctx context.Context, opts core.ListOptions) ([]string, error) {
	args := m.Called(opts)
	files, _ := args.Get(0).([]string)
	return files, args.Error(1)
}

// diffIgnoreRun compares options, ignoring the generated run ID and looking into the unexported
// fields of the storage implementations.
func diffIgnoreRun[T any](got, want T) string {
	return cmp.Diff(want, got,
		cmp.Exporter(func(reflect.Type) bool { return true }),
		cmp.FilterPath(func(p cmp.Path) bool {
			return p.Last().Type() == reflect.TypeOf(uuid.UUID{})
		}, cmp.Ignore()),
	)
}
