package config

// Schema is the JSON schema for validating configuration files. The backend
// tag is not enumerated: unknown kinds pass validation and are skipped when
// the registry is built.
const Schema = `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "type": "object",
    "properties": {
        "log_level": {
            "type": "string",
            "enum": ["debug", "info", "warn", "error"]
        },
        "log_format": {
            "type": "string",
            "enum": ["json", "console"]
        },
        "storage": {
            "type": "object",
            "additionalProperties": { "$ref": "#/definitions/backend" }
        },
        "backups": {
            "type": "object",
            "additionalProperties": { "$ref": "#/definitions/backup" }
        },
        "server": {
            "type": "object",
            "properties": {
                "http": { "$ref": "#/definitions/listen" },
                "https": {
                    "allOf": [
                        { "$ref": "#/definitions/listen" },
                        {
                            "type": "object",
                            "properties": {
                                "key": { "type": "string", "minLength": 1 },
                                "cert": { "type": "string", "minLength": 1 }
                            },
                            "required": ["key", "cert"]
                        }
                    ]
                }
            },
            "anyOf": [
                { "required": ["http"] },
                { "required": ["https"] }
            ]
        },
        "reload": {
            "type": "object",
            "properties": {
                "ssl": { "type": "boolean" },
                "storage_and_backups": { "type": "boolean" }
            },
            "additionalProperties": false
        }
    },
    "required": ["storage", "backups", "server"],
    "definitions": {
        "listen": {
            "type": "object",
            "properties": {
                "host": { "type": "string" },
                "port": { "type": "integer", "minimum": 0, "maximum": 65535 }
            },
            "required": ["port"]
        },
        "backup": {
            "type": "object",
            "properties": {
                "filename": { "type": "string", "minLength": 1 },
                "default_filename": { "type": "string", "minLength": 1 },
                "separator": { "type": "string", "minLength": 1, "maxLength": 1 },
                "storage": { "type": "string", "minLength": 1 }
            },
            "required": ["storage"],
            "anyOf": [
                { "required": ["filename"] },
                { "required": ["default_filename"] }
            ],
            "additionalProperties": false
        },
        "backend": {
            "type": "object",
            "properties": {
                "backend": { "type": "string", "minLength": 1 }
            },
            "required": ["backend"],
            "allOf": [
                {
                    "if": { "properties": { "backend": { "enum": ["filesystem", "fs"] } } },
                    "then": {
                        "properties": { "base_dir": { "type": "string", "minLength": 1 } },
                        "required": ["base_dir"]
                    }
                },
                {
                    "if": { "properties": { "backend": { "enum": ["object-store", "s3"] } } },
                    "then": {
                        "properties": {
                            "endpoint": { "type": "string" },
                            "region": { "type": "string" },
                            "bucket": { "type": "string", "minLength": 1 },
                            "prefix": { "type": "string" },
                            "access_key_id": { "type": "string" },
                            "secret_access_key": { "type": "string" },
                            "force_path_style": { "type": "boolean" }
                        },
                        "required": ["bucket"]
                    }
                },
                {
                    "if": { "properties": { "backend": { "const": "b2" } } },
                    "then": {
                        "properties": {
                            "account_id": { "type": "string", "minLength": 1 },
                            "application_key": { "type": "string", "minLength": 1 },
                            "bucket": { "type": "string", "minLength": 1 },
                            "prefix": { "type": "string" }
                        },
                        "required": ["account_id", "application_key", "bucket"]
                    }
                },
                {
                    "if": { "properties": { "backend": { "const": "sftp" } } },
                    "then": {
                        "properties": {
                            "host": { "type": "string", "minLength": 1 },
                            "port": { "type": "integer", "minimum": 1, "maximum": 65535 },
                            "user": { "type": "string", "minLength": 1 },
                            "password": { "type": "string" },
                            "key_path": { "type": "string" },
                            "key_passphrase": { "type": "string" },
                            "host_key": { "type": "string" },
                            "remote_path": { "type": "string", "minLength": 1 }
                        },
                        "required": ["host", "user", "remote_path"]
                    }
                },
                {
                    "if": { "properties": { "backend": { "const": "blob" } } },
                    "then": {
                        "properties": {
                            "url": { "type": "string", "minLength": 1 },
                            "prefix": { "type": "string" }
                        },
                        "required": ["url"]
                    }
                }
            ]
        }
    }
}`
