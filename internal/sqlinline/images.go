package sqlinline

const QEnsureImagesTable = `--sql 6f1d2c3a-8b4e-4f5a-9c7d-2e1b0a9f8c71
create table if not exists images (
  id                serial primary key,
  clerk_user_id     varchar(255) not null,
  generated_id      uuid not null,
  file_path         text not null,
  thumbnail_url     text,
  source_url        text not null,
  prompt            text not null,
  translated_prompt text,
  style_id          text not null,
  style             text,
  replicate_id      varchar(255),
  visibility        text not null default 'private',
  created_at        timestamptz not null default now()
);
`

const QInsertImage = `--sql 2caa5b21-4c2b-4b72-8a36-7d3d0f9b77a1
insert into images (
  clerk_user_id,
  generated_id,
  file_path,
  thumbnail_url,
  source_url,
  prompt,
  translated_prompt,
  style_id,
  style,
  replicate_id,
  visibility
)
values (
  $1::varchar,
  $2::uuid,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  nullif($7::text, ''),
  $8::text,
  $9::text,
  nullif($10::varchar, ''),
  $11::text
)
returning id, created_at;
`

const QPing = `--sql 9a3e7b10-4d2c-4e8f-a1b6-5c0d9e8f7a62
select 1;
`
