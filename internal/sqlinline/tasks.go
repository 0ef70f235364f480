package sqlinline

const QEnqueueTask = `--sql fff322b9-7953-4e95-a3b1-ba2634163ab0
insert into batch_tasks(
  id,
  job_id,
  kind,
  scene_ids,
  force,
  missing_only,
  depth
)
values (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
returning id;
`

const QClaimNextTask = `--sql 79fbf340-0f54-44ae-9e03-f8a82e646181
with next_task as (
    select id
    from batch_tasks
    where status = 'queued'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update batch_tasks
    set status = 'running', updated_at = now()
    where id in (select id from next_task)
    returning id, job_id, kind, scene_ids, force, missing_only, depth
)
select * from updated;
`

const QFinishTask = `--sql 406bec33-befc-4baa-a3c7-4aefb858fdab
update batch_tasks
set status = 'done',
    attempted = $2,
    succeeded = $3,
    failed = $4,
    skipped = $5,
    updated_at = now()
where id = $1;
`

const QFailTask = `--sql d5b108bd-f0f3-48c0-8545-f543d53e3aae
update batch_tasks
set status = 'failed',
    attempted = $2,
    succeeded = $3,
    failed = $4,
    skipped = $5,
    last_error = $6,
    updated_at = now()
where id = $1;
`

const QDeleteJobTasks = `--sql 1fff3e2d-59a2-4e3d-9e64-95c9b045c7c1
delete from batch_tasks
where job_id = $1;
`
