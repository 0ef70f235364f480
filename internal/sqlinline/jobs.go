package sqlinline

const QInsertJob = `--sql 66b01186-d1e4-41f8-a195-57ab88edee68
insert into jobs(
  id,
  status,
  topic,
  language,
  audience,
  hint,
  reuse_of,
  trace_id
)
values ($1, 'queued', $2, $3, $4, $5, nullif($6, '')::uuid, $7)
returning id;
`

const QResetJob = `--sql 72d3c769-293b-40ca-9641-929f5c5b7909
update jobs
set status = 'queued',
    topic = $2,
    language = $3,
    audience = $4,
    hint = $5,
    reuse_of = nullif($6, '')::uuid,
    trace_id = $7,
    storyboard = null,
    script = null,
    final_package = null,
    error_message = '',
    speech_done = 0,
    speech_failed = 0,
    images_done = 0,
    updated_at = now()
where id = $1
returning id;
`

const QGetJob = `--sql 706708c5-d38c-4163-b3c3-f75232989ea0
select
  id,
  status,
  topic,
  language,
  audience,
  hint,
  coalesce(reuse_of::text, ''),
  trace_id,
  storyboard,
  script,
  final_package,
  error_message,
  speech_done,
  speech_failed,
  images_done,
  created_at,
  updated_at
from jobs
where id = $1;
`

const QListJobs = `--sql 5b1aa9db-4cef-4ee8-8bf3-d3db95a6ef5b
select
  id,
  status,
  topic,
  language,
  audience,
  trace_id,
  error_message,
  created_at,
  updated_at
from jobs
order by created_at desc
limit $1;
`

const QClaimNextJob = `--sql 39d79b2c-7d3c-44c7-918a-ed3c679e1516
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
    set status = 'running', error_message = '', updated_at = now()
    where id in (select id from next_job)
    returning id, topic, language, audience, hint, trace_id
)
select * from updated;
`

const QSetJobStoryboard = `--sql 889756c2-729b-44ef-9d49-e593f7bb71e3
update jobs
set storyboard = $2, updated_at = now()
where id = $1;
`

const QSetJobScript = `--sql 15c3cd39-1fc7-45ac-9448-f8a82c6e7d2a
update jobs
set script = $2, updated_at = now()
where id = $1;
`

const QSucceedJob = `--sql 8736d174-9eec-4197-b9d1-c248e5058cd2
update jobs
set status = 'succeeded', final_package = $2, error_message = '', updated_at = now()
where id = $1;
`

const QFailJob = `--sql b6003e34-3b48-4fe3-a4ed-3781d2dd5cfc
update jobs
set status = 'failed', error_message = $2, updated_at = now()
where id = $1;
`

const QBumpSpeechDone = `--sql 1cf6fcf8-1e8f-416d-85d2-9456c097e1de
update jobs
set speech_done = speech_done + 1, updated_at = now()
where id = $1;
`

const QBumpSpeechFailed = `--sql 759d63d6-d955-47f1-a7e6-6077d8f12045
update jobs
set speech_failed = speech_failed + 1, updated_at = now()
where id = $1;
`

const QBumpImagesDone = `--sql 09bfc05c-d856-407e-9eba-b04f64f54063
update jobs
set images_done = images_done + 1, updated_at = now()
where id = $1;
`

const QDeleteJob = `--sql 9781378a-645f-4a63-b19a-d942d0a2af01
delete from jobs
where id = $1;
`
