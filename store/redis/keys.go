package redis

// Redis key naming conventions for jobqueue data.
// All keys are prefixed with "jobqueue:" to avoid collisions.

const keyPrefix = "jobqueue:"

// jobKey returns the key for a job hash: jobqueue:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// workerJobsKey returns the Set tracking the job IDs of a worker:
// jobqueue:worker_jobs:{name}
func workerJobsKey(name string) string { return keyPrefix + "worker_jobs:" + name }

// workerNamesKey is the Set of every worker name that owns jobs.
const workerNamesKey = keyPrefix + "worker_names"
