package sqlinline

// SQLite statements for the local CLI history. Timestamps are unix milliseconds.

const QSQLiteEnsureHistorySchema = `--sql ed3c56de-bc27-457a-8bfc-b2a606e92a6e
create table if not exists video_jobs (
    id text primary key,
    status text not null default 'QUEUED',
    model text not null,
    aspect_ratio text not null,
    spec_json text not null default '{}',
    task_id text not null default '',
    progress real not null default 0,
    outputs text not null default '[]',
    storage_key text not null default '',
    bytes integer not null default 0,
    error_kind text not null default '',
    error_message text not null default '',
    diagnostic text,
    created_at integer not null,
    updated_at integer not null
);
create index if not exists video_jobs_queue_idx on video_jobs (status, created_at);
`

const QSQLiteInsertJob = `--sql f9471ee3-ef41-49fa-8a6e-c143ba664ad2
insert into video_jobs (id, status, model, aspect_ratio, spec_json, created_at, updated_at)
values (?, ?, ?, ?, ?, ?, ?);
`

const QSQLiteClaimJob = `--sql 3bb81182-5cbc-447f-9561-472f08fab382
update video_jobs
set status = 'RUNNING', updated_at = ?
where id = (
    select id from video_jobs
    where status = 'QUEUED'
    order by created_at asc
    limit 1
)
returning id, status, model, aspect_ratio, spec_json, task_id, progress, outputs,
          storage_key, bytes, error_kind, error_message, diagnostic, created_at, updated_at;
`

const QSQLiteMarkSubmitted = `--sql f95cc5c6-f903-4717-957c-511af3321ab9
update video_jobs set task_id = ?, updated_at = ? where id = ?;
`

const QSQLiteUpdateProgress = `--sql 9e14cd6a-0182-461b-a72f-b04faa8a5d69
update video_jobs
set progress = max(progress, ?), updated_at = ?
where id = ? and status = 'RUNNING';
`

const QSQLiteCompleteJob = `--sql fc85c3bf-7c21-405d-af56-b3a9245fa5f5
update video_jobs
set status = 'SUCCEEDED',
    task_id = case when ? <> '' then ? else task_id end,
    outputs = ?,
    storage_key = ?,
    bytes = ?,
    progress = 1,
    updated_at = ?
where id = ?;
`

const QSQLiteFailJob = `--sql aba97b56-b3b3-47b2-8e5a-da978a77804a
update video_jobs
set status = 'FAILED', error_kind = ?, error_message = ?, diagnostic = ?, updated_at = ?
where id = ?;
`

const QSQLiteSelectJob = `--sql bd20ef22-91c0-4f41-9491-d8221fcb3102
select id, status, model, aspect_ratio, spec_json, task_id, progress, outputs,
       storage_key, bytes, error_kind, error_message, diagnostic, created_at, updated_at
from video_jobs
where id = ?;
`

const QSQLiteListJobs = `--sql f871b20f-81d1-40e4-8fb4-df7da4826d2a
select id, status, model, aspect_ratio, spec_json, task_id, progress, outputs,
       storage_key, bytes, error_kind, error_message, diagnostic, created_at, updated_at
from video_jobs
order by created_at desc, id desc
limit ?;
`
