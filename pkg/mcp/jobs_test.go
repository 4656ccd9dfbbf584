package mcp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobManager_CreateJob(t *testing.T) {
	m := NewJobManager()

	job, created := m.CreateJob("https://portal.example.com/listings/1")
	require.NotNil(t, job)
	assert.True(t, created)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "https://portal.example.com/listings/1", job.URL)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.False(t, job.StartedAt.IsZero())
	assert.True(t, job.CompletedAt.IsZero())

	assert.Same(t, job, m.GetJob(job.ID))
}

func TestJobManager_GetJobUnknownID(t *testing.T) {
	m := NewJobManager()
	assert.Nil(t, m.GetJob("no-such-job"))
}

func TestJobManager_DedupsActiveURL(t *testing.T) {
	m := NewJobManager()
	url := "https://portal.example.com/listings/1"

	first, created := m.CreateJob(url)
	assert.True(t, created)
	again, created := m.CreateJob(url)
	assert.Same(t, first, again, "an active URL reuses its job")
	assert.False(t, created)

	m.UpdateStatus(first.ID, JobStatusRunning, "")
	stillRunning, created := m.CreateJob(url)
	assert.Same(t, first, stillRunning)
	assert.False(t, created)

	m.UpdateStatus(first.ID, JobStatusCompleted, "")
	fresh, created := m.CreateJob(url)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, fresh.ID, "a finished URL gets a new job")
}

func TestJobManager_TerminalStatusSetsCompletedAt(t *testing.T) {
	m := NewJobManager()

	job, _ := m.CreateJob("https://portal.example.com/listings/1")
	m.UpdateStatus(job.ID, JobStatusRunning, "")
	assert.True(t, m.GetJob(job.ID).CompletedAt.IsZero())

	m.UpdateStatus(job.ID, JobStatusFailed, "fetch: connection refused")

	got := m.GetJob(job.ID)
	assert.Equal(t, JobStatusFailed, got.Status)
	assert.Equal(t, "fetch: connection refused", got.ErrorMessage)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestJobManager_UpdateStatusUnknownIDIsNoop(t *testing.T) {
	m := NewJobManager()
	m.UpdateStatus("no-such-job", JobStatusCompleted, "")
}

func TestJobManager_SetResult(t *testing.T) {
	m := NewJobManager()
	job, _ := m.CreateJob("https://portal.example.com/listings/1")

	m.SetResult(job.ID, `{"assets":3}`, 3)

	got := m.GetJob(job.ID)
	assert.Equal(t, `{"assets":3}`, got.ResultJSON)
	assert.Equal(t, 3, got.AssetCount)
}

func TestJobManager_CancelJob(t *testing.T) {
	m := NewJobManager()
	url := "https://portal.example.com/listings/1"
	job, _ := m.CreateJob(url)

	ctx := m.GetContext(job.ID)
	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before CancelJob")
	default:
	}

	require.True(t, m.CancelJob(job.ID))

	got := m.GetJob(job.ID)
	assert.Equal(t, JobStatusCancelled, got.Status)
	assert.False(t, got.CompletedAt.IsZero())
	select {
	case <-ctx.Done():
	default:
		t.Fatal("context not cancelled by CancelJob")
	}

	// The URL slot is freed.
	next, created := m.CreateJob(url)
	assert.True(t, created)
	assert.NotEqual(t, job.ID, next.ID)
}

func TestJobManager_CancelJobTerminalOrUnknown(t *testing.T) {
	m := NewJobManager()

	job, _ := m.CreateJob("https://portal.example.com/listings/1")
	m.UpdateStatus(job.ID, JobStatusCompleted, "")

	assert.False(t, m.CancelJob(job.ID), "completed jobs cannot be cancelled")
	assert.False(t, m.CancelJob("no-such-job"))
}

func TestJobManager_CancelAll(t *testing.T) {
	m := NewJobManager()

	j1, _ := m.CreateJob("https://portal.example.com/listings/1")
	j2, _ := m.CreateJob("https://portal.example.com/listings/2")
	j3, _ := m.CreateJob("https://portal.example.com/listings/3")
	m.UpdateStatus(j2.ID, JobStatusRunning, "")
	m.UpdateStatus(j3.ID, JobStatusCompleted, "")

	m.CancelAll()

	assert.Equal(t, JobStatusCancelled, m.GetJob(j1.ID).Status)
	assert.Equal(t, JobStatusCancelled, m.GetJob(j2.ID).Status)
	assert.Equal(t, JobStatusCompleted, m.GetJob(j3.ID).Status, "terminal jobs keep their status")

	for _, id := range []string{j1.ID, j2.ID} {
		select {
		case <-m.GetContext(id).Done():
		default:
			t.Fatalf("job %s context not cancelled", id)
		}
	}
}

func TestJobManager_GetContextUnknownID(t *testing.T) {
	m := NewJobManager()

	ctx := m.GetContext("no-such-job")
	require.NotNil(t, ctx)
	select {
	case <-ctx.Done():
		t.Fatal("fallback context must not be cancelled")
	default:
	}
}

func TestJobManager_HistoryIsBounded(t *testing.T) {
	m := NewJobManager()

	keep, _ := m.CreateJob("https://portal.example.com/listings/keep")
	for i := 0; i < maxJobHistory+20; i++ {
		job, _ := m.CreateJob(fmt.Sprintf("https://portal.example.com/listings/%d", i))
		m.UpdateStatus(job.ID, JobStatusCompleted, "")
	}

	m.mu.RLock()
	total := len(m.jobs)
	m.mu.RUnlock()
	assert.LessOrEqual(t, total, maxJobHistory)

	assert.NotNil(t, m.GetJob(keep.ID), "active jobs survive pruning")
}
