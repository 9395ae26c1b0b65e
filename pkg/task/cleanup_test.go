package task

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scalecore/scheduler/pkg/model"
)

func TestNewCleanupTask_InitialCommandMatchesLiteralShape(t *testing.T) {
	gen := NewAtomicCounter()
	ct := NewCleanupTask("scale", "agent-1", gen, nil)

	assert.True(t, ct.IsInitial())
	assert.Equal(t,
		"for cont in `docker ps -f status=created -f status=dead -f status=exited --format '{{.Names}}'`; do docker rm $cont; done"+
			"; "+
			"for vol in `docker volume ls -f dangling=true -q`; do docker volume rm $vol; done",
		ct.Command(),
	)
}

func TestNewCleanupTask_TargetedCommandFiltersByName(t *testing.T) {
	gen := NewAtomicCounter()
	ct := NewCleanupTask("scale", "agent-1", gen, []CleanupTarget{
		{ContainerNames: []string{"c1", "c2"}, VolumeNames: []string{"v1"}},
	})

	assert.False(t, ct.IsInitial())
	assert.Equal(t,
		"for cont in `docker ps -f status=created -f status=dead -f status=exited --format '{{.Names}}' | grep -e c1 -e c2`; do docker rm $cont; done"+
			"; "+
			"for vol in `docker volume ls -f dangling=true -q | grep -e v1`; do docker volume rm $vol; done",
		ct.Command(),
	)
}

func TestNewCleanupTask_IDEncodesFrameworkAndCounter(t *testing.T) {
	gen := NewAtomicCounter()
	ct := NewCleanupTask("myframework", "agent-1", gen, nil)
	assert.Equal(t, "scale_cleanup_myframework_1", ct.ID())

	ct2 := NewCleanupTask("myframework", "agent-1", gen, nil)
	assert.Equal(t, "scale_cleanup_myframework_2", ct2.ID())
}

func TestNewCleanupTask_DetermineErrorAlwaysNil(t *testing.T) {
	gen := NewAtomicCounter()
	ct := NewCleanupTask("scale", "agent-1", gen, nil)
	assert.Nil(t, ct.DetermineError(model.StatusUpdate{TaskID: ct.ID(), Status: model.TaskStatusFailed}))
}
