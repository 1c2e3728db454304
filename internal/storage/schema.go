package storage

const schema = `
-- Singleton settings row: rendering flag and the serialized SRS table.
CREATE TABLE IF NOT EXISTS settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    markdown INTEGER NOT NULL DEFAULT 1,
    srs TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tag (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE COLLATE NOCASE
);

-- 'h' columns hold content hashes; their UNIQUE indexes back the
-- pre-insert dedup guard.
CREATE TABLE IF NOT EXISTS media (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL,
    data BLOB NOT NULL,
    h TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS model (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    css TEXT NOT NULL DEFAULT '',
    js TEXT NOT NULL DEFAULT '',
    fields TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS template (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    model_id INTEGER NOT NULL REFERENCES model(id),
    name TEXT NOT NULL,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    h TEXT NOT NULL UNIQUE,
    UNIQUE (model_id, name)
);

CREATE TABLE IF NOT EXISTS deck (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS note (
    id INTEGER PRIMARY KEY,
    model_id INTEGER NOT NULL REFERENCES model(id),
    data TEXT NOT NULL,
    h TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS card (
    id INTEGER PRIMARY KEY,
    note_id INTEGER NOT NULL REFERENCES note(id),
    deck_id INTEGER NOT NULL REFERENCES deck(id),
    template_id INTEGER NOT NULL REFERENCES template(id),
    cloze_order INTEGER,
    srs_level INTEGER,
    next_review DATETIME,
    h TEXT NOT NULL UNIQUE
);

-- Join tables have no lifecycle of their own; rows appear and disappear
-- as a side effect of mutating the owning entity.
CREATE TABLE IF NOT EXISTS note_tag (
    note_id INTEGER NOT NULL REFERENCES note(id),
    tag_id INTEGER NOT NULL REFERENCES tag(id),
    PRIMARY KEY (note_id, tag_id)
);

CREATE TABLE IF NOT EXISTS note_media (
    note_id INTEGER NOT NULL REFERENCES note(id),
    media_id INTEGER NOT NULL REFERENCES media(id),
    PRIMARY KEY (note_id, media_id)
);

CREATE TABLE IF NOT EXISTS model_media (
    model_id INTEGER NOT NULL REFERENCES model(id),
    media_id INTEGER NOT NULL REFERENCES media(id),
    PRIMARY KEY (model_id, media_id)
);
`
