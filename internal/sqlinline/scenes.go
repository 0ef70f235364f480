package sqlinline

const QInsertScene = `--sql af1977a2-1e7d-4034-a2a8-e8f239da8c12
insert into scenes(
  id,
  job_id,
  idx,
  narration,
  on_screen_text,
  visual_brief,
  mood,
  duration_sec,
  image_prompt
)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
returning id;
`

const QListScenes = `--sql 252b97c0-253e-4786-9b25-dd46cd12dfbf
select
  id,
  job_id,
  idx,
  narration,
  on_screen_text,
  visual_brief,
  mood,
  duration_sec,
  image_prompt,
  image_key,
  image_url,
  coalesce(claim_status, ''),
  coalesce(claim_request_id::text, ''),
  coalesce(claim_ts, to_timestamp(0)),
  claim_error
from scenes
where job_id = $1
order by idx asc;
`

const QGetScene = `--sql cba68de1-1566-4910-9f59-df3e4c984923
select
  id,
  job_id,
  idx,
  narration,
  on_screen_text,
  visual_brief,
  mood,
  duration_sec,
  image_prompt,
  image_key,
  image_url,
  coalesce(claim_status, ''),
  coalesce(claim_request_id::text, ''),
  coalesce(claim_ts, to_timestamp(0)),
  claim_error
from scenes
where id = $1 and job_id = $2;
`

const QAcquireSceneClaim = `--sql 1becd1d6-b93e-4ee7-a672-9dd41ee470fc
update scenes
set claim_status = 'generating',
    claim_request_id = $2,
    claim_ts = now(),
    claim_error = '',
    updated_at = now()
where id = $1
  and claim_status is not distinct from nullif($3, '')
  and claim_request_id is not distinct from nullif($4, '')::uuid;
`

const QCompleteSceneClaim = `--sql 39079b92-3c20-4dbe-8c5a-2ff2bb164e72
update scenes
set claim_status = 'succeeded',
    claim_error = '',
    image_key = $3,
    image_url = $4,
    updated_at = now()
where id = $1
  and claim_status = 'generating'
  and claim_request_id = $2;
`

const QFailSceneClaim = `--sql fdcba5bc-e820-4a49-9713-a1906b4d5223
update scenes
set claim_status = 'failed',
    claim_error = $3,
    updated_at = now()
where id = $1
  and claim_status = 'generating'
  and claim_request_id = $2;
`

const QDeleteJobScenes = `--sql c000a486-1acd-449c-8759-58c1d5d87860
delete from scenes
where job_id = $1;
`
