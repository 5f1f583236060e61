package sqlinline

const QSelectOrganization = `--sql 5315751f-e37b-4233-89ff-86294b955feb
select id, name, photo_limit, created_at, updated_at
from organizations
where id = $1::uuid
limit 1;
`

const QUpdateOrganizationPhotoLimit = `--sql 1f2ca4bd-4b71-44ee-8f50-c4f2a10859b4
update organizations
set photo_limit = $2::int,
    updated_at = now()
where id = $1::uuid;
`
