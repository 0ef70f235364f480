package sqlinline

const QInsertAsset = `--sql 3494914b-6d51-4abf-9923-173ca8f8d026
insert into assets(
  id,
  job_id,
  scene_id,
  kind,
  storage_key,
  url,
  metadata
)
values (
  gen_random_uuid(),
  $1::uuid,
  nullif($2::text, '')::uuid,
  $3::text,
  $4::text,
  $5::text,
  $6::jsonb
)
returning id;
`

const QListAssets = `--sql 8f0ce4bf-3639-4aec-852f-2434cfccb7ac
select
  id,
  job_id,
  coalesce(scene_id::text, ''),
  kind,
  storage_key,
  url,
  metadata,
  created_at
from assets
where job_id = $1
order by created_at asc;
`

const QListAssetKeys = `--sql f6a4e262-edf2-4e28-95ce-b6c6bcb22d64
select storage_key
from assets
where job_id = $1 and storage_key <> '';
`

const QDeleteJobAssets = `--sql 5000901d-ce4c-49c3-83ef-1f1af510f045
delete from assets
where job_id = $1;
`
