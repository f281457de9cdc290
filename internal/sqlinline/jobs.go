package sqlinline

const QEnsureVideoJobsSchema = `--sql b57ca7ac-6eee-457e-9121-0c3830830478
create table if not exists video_jobs (
    id uuid primary key,
    status text not null default 'QUEUED',
    model text not null,
    aspect_ratio text not null,
    spec_json jsonb not null default '{}'::jsonb,
    task_id text,
    progress double precision not null default 0,
    outputs jsonb not null default '[]'::jsonb,
    storage_key text,
    bytes bigint not null default 0,
    error_kind text,
    error_message text,
    diagnostic jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create index if not exists video_jobs_queue_idx on video_jobs (status, created_at);
`

const QInsertVideoJob = `--sql e6bc843a-6ece-46a6-b538-03b81bf605b8
insert into video_jobs (id, status, model, aspect_ratio, spec_json, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::jsonb, now(), now())
returning created_at, updated_at;
`

const QClaimVideoJob = `--sql c436fd00-4f32-47cc-b8ab-d38bd03c04c0
with next_job as (
    select id
    from video_jobs
    where status = 'QUEUED'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update video_jobs
    set status = 'RUNNING', updated_at = now()
    where id in (select id from next_job)
    returning id, status, model, aspect_ratio, spec_json, task_id, progress, outputs,
              storage_key, bytes, error_kind, error_message, diagnostic, created_at, updated_at
)
select id::text, status, model, aspect_ratio, spec_json, coalesce(task_id, ''), progress, outputs,
       coalesce(storage_key, ''), bytes, coalesce(error_kind, ''), coalesce(error_message, ''),
       diagnostic, created_at, updated_at
from updated;
`

const QMarkVideoJobSubmitted = `--sql a074b6b7-b96b-44a3-9296-ebc7dd057193
update video_jobs
set task_id = $2::text, updated_at = now()
where id = $1::uuid;
`

const QUpdateVideoJobProgress = `--sql 47577fe0-91ee-429a-853c-5bf8345850dc
update video_jobs
set progress = greatest(progress, $2::double precision), updated_at = now()
where id = $1::uuid and status = 'RUNNING';
`

const QCompleteVideoJob = `--sql e86a8981-8a62-4eca-b2d0-18bf76301002
update video_jobs
set status = 'SUCCEEDED',
    task_id = coalesce(nullif($2::text, ''), task_id),
    outputs = $3::jsonb,
    storage_key = $4::text,
    bytes = $5::bigint,
    progress = 1,
    updated_at = now()
where id = $1::uuid;
`

const QFailVideoJob = `--sql 28ed8f7b-7bba-41fb-b2da-d2aa965067ba
update video_jobs
set status = 'FAILED',
    error_kind = $2::text,
    error_message = $3::text,
    diagnostic = $4::jsonb,
    updated_at = now()
where id = $1::uuid;
`

const QSelectVideoJob = `--sql b73277a1-c186-4245-aba6-c6788ee645a7
select id::text, status, model, aspect_ratio, spec_json, coalesce(task_id, ''), progress, outputs,
       coalesce(storage_key, ''), bytes, coalesce(error_kind, ''), coalesce(error_message, ''),
       diagnostic, created_at, updated_at
from video_jobs
where id = $1::uuid;
`

const QListVideoJobs = `--sql 79e08feb-8707-4707-89f5-e8010202be4d
select id::text, status, model, aspect_ratio, spec_json, coalesce(task_id, ''), progress, outputs,
       coalesce(storage_key, ''), bytes, coalesce(error_kind, ''), coalesce(error_message, ''),
       diagnostic, created_at, updated_at
from video_jobs
order by created_at desc
limit $1::int;
`
