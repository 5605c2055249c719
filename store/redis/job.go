package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/job"
)

// claimScript marks the first ARGV[1] claimable hashes in KEYS as active
// and returns their IDs. KEYS arrive in queue order.
var claimScript = goredis.NewScript(`
local limit = tonumber(ARGV[1])
local withDeleted = ARGV[2] == "1"
local claimed = {}
for _, key in ipairs(KEYS) do
	if #claimed >= limit then
		break
	end
	local f = redis.call("HMGET", key, "id", "active", "failed", "status", "is_deleted")
	local status = f[4]
	if f[1] and f[2] == "0" and (not f[3] or f[3] == "")
		and status ~= "finished" and status ~= "failed" and status ~= "cancelled"
		and (withDeleted or f[5] == "0") then
		redis.call("HSET", key, "active", "1")
		claimed[#claimed + 1] = f[1]
	end
end
return claimed
`)

// AddJob stores the record as a Hash and indexes it.
func (s *Store) AddJob(ctx context.Context, r *job.Record) error {
	key := jobKey(r.ID)

	// Check for duplicate.
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("jobqueue/redis: add job check exists: %w", err)
	}
	if exists > 0 {
		return jobqueue.ErrJobAlreadyExists
	}

	fields, err := jobToMap(r)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.SAdd(ctx, jobIDsKey, r.ID)
	pipe.SAdd(ctx, workerJobsKey(r.WorkerName), r.ID)
	pipe.SAdd(ctx, workerNamesKey, r.WorkerName)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobqueue/redis: add job: %w", err)
	}
	return nil
}

// GetJob retrieves a record by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*job.Record, error) {
	vals, err := s.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("jobqueue/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, jobqueue.ErrJobNotFound
	}
	return mapToJob(vals)
}

// GetJobs returns every record that is not soft-deleted.
func (s *Store) GetJobs(ctx context.Context) ([]*job.Record, error) {
	return s.list(ctx, jobIDsKey, func(r *job.Record) bool { return !r.IsDeleted })
}

// GetJobsWithDeleted returns every record.
func (s *Store) GetJobsWithDeleted(ctx context.Context) ([]*job.Record, error) {
	return s.list(ctx, jobIDsKey, nil)
}

// GetActiveMarkedJobs returns claimed records that are not soft-deleted.
func (s *Store) GetActiveMarkedJobs(ctx context.Context) ([]*job.Record, error) {
	return s.list(ctx, jobIDsKey, func(r *job.Record) bool { return r.Active && !r.IsDeleted })
}

// GetNextJob returns the first eligible record.
func (s *Store) GetNextJob(ctx context.Context) (*job.Record, error) {
	return s.first(ctx, (*job.Record).Eligible)
}

// GetWorkInProgressJob returns the first unclaimed record left in
// processing status.
func (s *Store) GetWorkInProgressJob(ctx context.Context) (*job.Record, error) {
	return s.first(ctx, (*job.Record).WorkInProgress)
}

// GetJobsForWorker claims up to count eligible records for the worker.
func (s *Store) GetJobsForWorker(ctx context.Context, workerName string, count int) ([]*job.Record, error) {
	return s.claim(ctx, workerName, count, false)
}

// GetJobsForWorkerWithDeleted claims up to count eligible records for the
// worker, soft-deleted ones included.
func (s *Store) GetJobsForWorkerWithDeleted(ctx context.Context, workerName string, count int) ([]*job.Record, error) {
	return s.claim(ctx, workerName, count, true)
}

// UpdateJob persists changes to an existing record.
func (s *Store) UpdateJob(ctx context.Context, r *job.Record) error {
	key := jobKey(r.ID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("jobqueue/redis: update job exists: %w", err)
	}
	if exists == 0 {
		return jobqueue.ErrJobNotFound
	}

	fields, err := jobToMap(r)
	if err != nil {
		return err
	}
	if _, err = s.client.HSet(ctx, key, fields).Result(); err != nil {
		return fmt.Errorf("jobqueue/redis: update job: %w", err)
	}
	return nil
}

// RemoveJob soft-deletes a record.
func (s *Store) RemoveJob(ctx context.Context, jobID string) error {
	key := jobKey(jobID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("jobqueue/redis: remove job exists: %w", err)
	}
	if exists == 0 {
		return jobqueue.ErrJobNotFound
	}
	if err := s.client.HSet(ctx, key, "is_deleted", "1").Err(); err != nil {
		return fmt.Errorf("jobqueue/redis: remove job: %w", err)
	}
	return nil
}

// RemoveJobPermanently deletes a record and its index entries.
func (s *Store) RemoveJobPermanently(ctx context.Context, jobID string) error {
	key := jobKey(jobID)

	// Get the worker name before deleting to clean its index.
	workerName, err := s.client.HGet(ctx, key, "worker_name").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return jobqueue.ErrJobNotFound
		}
		return fmt.Errorf("jobqueue/redis: remove job get worker: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, jobIDsKey, jobID)
	pipe.SRem(ctx, workerJobsKey(workerName), jobID)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobqueue/redis: remove job permanently: %w", err)
	}
	return nil
}

// RemoveJobsByWorkerName soft-deletes every record of the worker.
func (s *Store) RemoveJobsByWorkerName(ctx context.Context, workerName string) error {
	ids, err := s.client.SMembers(ctx, workerJobsKey(workerName)).Result()
	if err != nil {
		return fmt.Errorf("jobqueue/redis: remove jobs smembers: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for _, jobID := range ids {
		pipe.HSet(ctx, jobKey(jobID), "is_deleted", "1")
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobqueue/redis: remove jobs of %q: %w", workerName, err)
	}
	return nil
}

// DeleteAllJobs deletes every record and index.
func (s *Store) DeleteAllJobs(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return fmt.Errorf("jobqueue/redis: delete all smembers: %w", err)
	}
	workers, err := s.client.SMembers(ctx, workerNamesKey).Result()
	if err != nil {
		return fmt.Errorf("jobqueue/redis: delete all workers: %w", err)
	}

	keys := make([]string, 0, len(ids)+len(workers)+2)
	for _, jobID := range ids {
		keys = append(keys, jobKey(jobID))
	}
	for _, w := range workers {
		keys = append(keys, workerJobsKey(w))
	}
	keys = append(keys, jobIDsKey, workerNamesKey)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("jobqueue/redis: delete all jobs: %w", err)
	}
	return nil
}

// CountJobs returns the number of records matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	recs, err := s.list(ctx, jobIDsKey, func(r *job.Record) bool {
		if r.IsDeleted && !opts.WithDeleted {
			return false
		}
		return opts.Status == "" || r.Status == opts.Status
	})
	if err != nil {
		return 0, err
	}
	return int64(len(recs)), nil
}

// ── helpers ──

// list loads the records indexed under setKey, keeps those accepted by
// keep (all when nil), and returns them in queue order.
func (s *Store) list(ctx context.Context, setKey string, keep func(*job.Record) bool) ([]*job.Record, error) {
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("jobqueue/redis: list smembers: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, jobID := range ids {
		cmds[i] = pipe.HGetAll(ctx, jobKey(jobID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("jobqueue/redis: list load: %w", err)
	}

	recs := make([]*job.Record, 0, len(ids))
	for _, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue // removed concurrently
		}
		r, convErr := mapToJob(vals)
		if convErr != nil {
			return nil, convErr
		}
		if keep == nil || keep(r) {
			recs = append(recs, r)
		}
	}

	sort.Slice(recs, func(i, k int) bool { return job.Less(recs[i], recs[k]) })
	return recs, nil
}

func (s *Store) first(ctx context.Context, keep func(*job.Record) bool) (*job.Record, error) {
	recs, err := s.list(ctx, jobIDsKey, keep)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, jobqueue.ErrJobNotFound
	}
	return recs[0], nil
}

func (s *Store) claim(ctx context.Context, workerName string, count int, withDeleted bool) ([]*job.Record, error) {
	if count <= 0 {
		return nil, nil
	}

	candidates, err := s.list(ctx, workerJobsKey(workerName), func(r *job.Record) bool {
		if r.IsDeleted && !withDeleted {
			return false
		}
		cp := *r
		cp.IsDeleted = false
		return cp.Eligible()
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	keys := make([]string, len(candidates))
	byID := make(map[string]*job.Record, len(candidates))
	for i, r := range candidates {
		keys[i] = jobKey(r.ID)
		byID[r.ID] = r
	}

	flag := "0"
	if withDeleted {
		flag = "1"
	}
	claimed, err := claimScript.Run(ctx, s.client, keys, count, flag).StringSlice()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("jobqueue/redis: claim jobs for %q: %w", workerName, err)
	}

	recs := make([]*job.Record, 0, len(claimed))
	for _, jobID := range claimed {
		r, ok := byID[jobID]
		if !ok {
			continue
		}
		r.Active = true
		recs = append(recs, r)
	}
	return recs, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func jobToMap(r *job.Record) (map[string]interface{}, error) {
	meta, err := job.EncodeMetaData(r.MetaData)
	if err != nil {
		return nil, fmt.Errorf("jobqueue/redis: encode metadata: %w", err)
	}

	failed := ""
	if r.Failed != nil {
		failed = r.Failed.UTC().Format(time.RFC3339Nano)
	}

	return map[string]interface{}{
		"id":          r.ID,
		"worker_name": r.WorkerName,
		"active":      boolField(r.Active),
		"payload":     string(r.Payload),
		"meta_data":   meta,
		"attempts":    strconv.Itoa(r.Attempts),
		"created":     r.Created.UTC().Format(time.RFC3339Nano),
		"failed":      failed,
		"timeout":     strconv.FormatInt(job.TimeoutMillis(r.Timeout), 10),
		"priority":    strconv.Itoa(r.Priority),
		"is_deleted":  boolField(r.IsDeleted),
		"status":      string(r.Status),
	}, nil
}

func mapToJob(m map[string]string) (*job.Record, error) {
	meta, err := job.DecodeMetaData(m["meta_data"])
	if err != nil {
		return nil, fmt.Errorf("jobqueue/redis: decode metadata of %q: %w", m["id"], err)
	}

	attempts, _ := strconv.Atoi(m["attempts"])               //nolint:errcheck // best-effort parse from trusted Redis data
	priority, _ := strconv.Atoi(m["priority"])               //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64)     //nolint:errcheck // best-effort parse from trusted Redis data
	created, _ := time.Parse(time.RFC3339Nano, m["created"]) //nolint:errcheck // best-effort parse from trusted Redis data

	r := &job.Record{
		ID:         m["id"],
		WorkerName: m["worker_name"],
		Active:     m["active"] == "1",
		Payload:    []byte(m["payload"]),
		MetaData:   meta,
		Attempts:   attempts,
		Created:    created,
		Timeout:    time.Duration(timeout) * time.Millisecond,
		Priority:   priority,
		IsDeleted:  m["is_deleted"] == "1",
		Status:     job.Status(m["status"]),
	}
	if v := m["failed"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		r.Failed = &t
	}
	return r, nil
}
