package lifecycle

import (
	"testing"
	"time"

	"wisefido-vision/internal/config"
	"wisefido-vision/internal/dispatch"
	"wisefido-vision/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Vision.CameraID = "cam_01"
	cfg.Vision.VLMInterval = 5 * time.Second
	return cfg
}

func testFrame() *models.Frame {
	return &models.Frame{
		CameraID:  "cam_01",
		Height:    1000,
		ImageJPEG: []byte{0xFF, 0xD8},
	}
}

func suspiciousSet(ids ...string) []*models.Subject {
	subjects := make([]*models.Subject, 0, len(ids))
	for _, id := range ids {
		subjects = append(subjects, &models.Subject{
			TrackingID: id,
			Status:     models.StatusSuspicious,
		})
	}
	return subjects
}

func drainCommands(q *dispatch.CommandQueue) []models.Command {
	var cmds []models.Command
	for q.Len() > 0 {
		cmd, ok := q.Get()
		if !ok {
			break
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func drainTasks(q *dispatch.TaskQueue) []models.VLMTask {
	var tasks []models.VLMTask
	for {
		task, ok := q.TryGet()
		if !ok {
			break
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func newTestManager() (*Manager, *dispatch.CommandQueue, *dispatch.TaskQueue) {
	dbQueue := dispatch.NewCommandQueue()
	vlmQueue := dispatch.NewTaskQueue()
	return NewManager(testConfig(), dbQueue, vlmQueue, zap.NewNop()), dbQueue, vlmQueue
}

func TestManager_StartTriggersImmediateAnalysis(t *testing.T) {
	m, dbQueue, vlmQueue := newTestManager()

	now := time.Now()
	m.Update(suspiciousSet("person_a"), testFrame(), now)

	require.NotEmpty(t, m.ActiveEventID())

	cmds := drainCommands(dbQueue)
	require.Len(t, cmds, 1)
	assert.Equal(t, models.ActionCreateEvent, cmds[0].Action)
	require.NotNil(t, cmds[0].CreateEvent)
	assert.Equal(t, m.ActiveEventID(), cmds[0].CreateEvent.EventID)
	assert.Equal(t, "cam_01", cmds[0].CreateEvent.StartCameraID)
	assert.Equal(t, "person_a", cmds[0].CreateEvent.ParticipantTrackingID)

	// 创建事件的同一帧立即触发第一次分析
	tasks := drainTasks(vlmQueue)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskAnalyze, tasks[0].Task)
	assert.Equal(t, m.ActiveEventID(), tasks[0].EventID)
	require.Len(t, tasks[0].Subjects, 1)
	assert.Equal(t, "person_a", tasks[0].Subjects[0].TrackingID)
	assert.NotEmpty(t, tasks[0].FrameJPEG)
}

func TestManager_AtMostOneActiveEvent(t *testing.T) {
	m, dbQueue, vlmQueue := newTestManager()

	now := time.Now()
	m.Update(suspiciousSet("person_a"), testFrame(), now)
	firstID := m.ActiveEventID()
	drainCommands(dbQueue)
	drainTasks(vlmQueue)

	// 事件活跃期间再出现suspicious：不创建第二个事件
	m.Update(suspiciousSet("person_a", "person_b"), testFrame(), now.Add(time.Second))
	assert.Equal(t, firstID, m.ActiveEventID())

	for _, cmd := range drainCommands(dbQueue) {
		assert.NotEqual(t, models.ActionCreateEvent, cmd.Action)
	}
}

func TestManager_EscalationIntervalGating(t *testing.T) {
	m, dbQueue, vlmQueue := newTestManager()

	now := time.Now()
	m.Update(suspiciousSet("person_a"), testFrame(), now)
	drainCommands(dbQueue)
	require.Len(t, drainTasks(vlmQueue), 1)

	// 间隔未到：不触发分析
	m.Update(suspiciousSet("person_a"), testFrame(), now.Add(2*time.Second))
	assert.Empty(t, drainTasks(vlmQueue))

	// 间隔已到：触发第二次分析
	m.Update(suspiciousSet("person_a"), testFrame(), now.Add(5*time.Second))
	require.Len(t, drainTasks(vlmQueue), 1)
}

func TestManager_NewParticipantFoldedOnEscalation(t *testing.T) {
	m, dbQueue, vlmQueue := newTestManager()

	now := time.Now()
	m.Update(suspiciousSet("person_a", "person_b"), testFrame(), now)

	// 创建时只登记第一个参与者，其余在同帧的立即escalate中补入
	eventID := m.ActiveEventID()
	cmds := drainCommands(dbQueue)
	require.Len(t, cmds, 2)
	assert.Equal(t, models.ActionCreateEvent, cmds[0].Action)
	assert.Equal(t, "person_a", cmds[0].CreateEvent.ParticipantTrackingID)
	assert.Equal(t, models.ActionAddParticipant, cmds[1].Action)
	require.NotNil(t, cmds[1].AddParticipant)
	assert.Equal(t, eventID, cmds[1].AddParticipant.EventID)
	assert.Equal(t, "person_b", cmds[1].AddParticipant.TrackingID)

	assert.ElementsMatch(t, []string{"person_a", "person_b"}, m.Participants())

	// 分析任务覆盖全部suspicious
	tasks := drainTasks(vlmQueue)
	require.Len(t, tasks, 1)
	assert.Len(t, tasks[0].Subjects, 2)

	// 已登记参与者不重复补入
	m.Update(suspiciousSet("person_a", "person_b"), testFrame(), now.Add(5*time.Second))
	for _, cmd := range drainCommands(dbQueue) {
		assert.NotEqual(t, models.ActionAddParticipant, cmd.Action)
	}
}

func TestManager_EndEventOnClear(t *testing.T) {
	m, dbQueue, vlmQueue := newTestManager()

	now := time.Now()
	m.Update(suspiciousSet("person_a"), testFrame(), now)
	eventID := m.ActiveEventID()
	drainCommands(dbQueue)
	drainTasks(vlmQueue)

	// suspicious清空：结束事件且不再触发分析
	m.Update(nil, testFrame(), now.Add(10*time.Second))
	assert.Empty(t, m.ActiveEventID())
	assert.Nil(t, m.Participants())

	cmds := drainCommands(dbQueue)
	require.Len(t, cmds, 1)
	assert.Equal(t, models.ActionEndEvent, cmds[0].Action)
	require.NotNil(t, cmds[0].EndEvent)
	assert.Equal(t, eventID, cmds[0].EndEvent.EventID)
	assert.Equal(t, models.EventStatusEndedCleared, cmds[0].EndEvent.FinalStatus)
	assert.Empty(t, cmds[0].EndEvent.FinalSummary)
	assert.Empty(t, drainTasks(vlmQueue))
}

func TestManager_NoCommandsAfterEnd(t *testing.T) {
	m, dbQueue, vlmQueue := newTestManager()

	now := time.Now()
	m.Update(suspiciousSet("person_a"), testFrame(), now)
	m.Update(nil, testFrame(), now.Add(time.Second))
	drainCommands(dbQueue)
	drainTasks(vlmQueue)

	// 事件结束后的空帧：不产生任何命令
	m.Update(nil, testFrame(), now.Add(20*time.Second))
	assert.Empty(t, drainCommands(dbQueue))
	assert.Empty(t, drainTasks(vlmQueue))
}

func TestManager_NewEventAfterPreviousEnded(t *testing.T) {
	m, dbQueue, vlmQueue := newTestManager()

	now := time.Now()
	m.Update(suspiciousSet("person_a"), testFrame(), now)
	firstID := m.ActiveEventID()
	m.Update(nil, testFrame(), now.Add(time.Second))
	drainCommands(dbQueue)
	drainTasks(vlmQueue)

	// 再次出现suspicious：开启新事件，ID不同
	m.Update(suspiciousSet("person_b"), testFrame(), now.Add(30*time.Second))
	secondID := m.ActiveEventID()
	require.NotEmpty(t, secondID)
	assert.NotEqual(t, firstID, secondID)

	cmds := drainCommands(dbQueue)
	require.Len(t, cmds, 1)
	assert.Equal(t, models.ActionCreateEvent, cmds[0].Action)
	require.Len(t, drainTasks(vlmQueue), 1)
}
