package sqlinline

const QInsertEvent = `--sql 59e7dab4-9324-4679-90b7-9a5ac21430fd
insert into job_events(job_id, level, message, fields)
values ($1, $2, $3, $4);
`

const QListEvents = `--sql 0589e380-9dd5-4c21-acf3-89b1903127b5
select id, job_id, level, message, fields, at
from job_events
where job_id = $1
order by id asc
limit $2;
`

const QDeleteJobEvents = `--sql 0517db96-c0fe-4d08-9578-69e1f86a36c6
delete from job_events
where job_id = $1;
`
