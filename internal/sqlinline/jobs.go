// Package sqlinline holds the handful of queries whose exact shape matters
// for correctness, kept as named constants so they can be reviewed in one
// place.
package sqlinline

// QClaimNextJob atomically flips the oldest queued job to running. The
// SKIP LOCKED select guarantees two workers never claim the same row.
const QClaimNextJob = `--sql claim-next-job
with next_job as (
    select id
    from jobs
    where status = 'queued'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update jobs
    set status = 'running',
        stage = 'init',
        updated_at = now()
    where id in (select id from next_job)
    returning id, session_id, parent_job_id, prompt, bedrooms, bathrooms, style,
        want_exterior_image, idempotency_key, request_hash, priority, status, stage,
        error, failure_code, retry_count, meta, stages, warnings, created_at, updated_at
)
select * from updated;
`

// QQueueStats summarizes queue depth and recent terminal outcomes in one
// round trip.
const QQueueStats = `--sql queue-stats
select
    count(*) filter (where status = 'queued')                            as queued,
    count(*) filter (where status = 'running')                           as running,
    count(*) filter (where status = 'failed' and updated_at >= $1)       as failed,
    count(*) filter (where status = 'succeeded' and updated_at >= $1)    as succeeded
from jobs;
`
