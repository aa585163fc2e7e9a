// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

/*
Package config loads LabNotify configuration with koanf.

Configuration is layered, later layers win:

 1. Defaults from defaultConfig()
 2. A YAML file: CONFIG_PATH, else config.yaml in the working directory,
    else /etc/labnotify/config.yaml
 3. Environment variables

Example config.yaml:

	backend:
	  base_url: https://lab.example.org/api
	  username: tech
	  password: secret
	realtime:
	  heartbeat: 20s
	storage:
	  path: /var/lib/labnotify
	server:
	  port: 8787
	  cors_origins: ["http://localhost:5173"]
	events:
	  enabled: true
	  url: nats://127.0.0.1:4222

Common environment variables:

	LAB_API_URL       backend.base_url
	LAB_WS_URL        backend.ws_base_url
	LAB_USER_ID       backend.user_id
	LAB_TOKEN         backend.token
	LAB_USERNAME      backend.username
	LAB_PASSWORD      backend.password
	STORAGE_PATH      storage.path
	HTTP_PORT         server.port
	CORS_ORIGINS      server.cors_origins (comma-separated)
	NATS_ENABLED      events.enabled
	NATS_URL          events.url
	LOG_LEVEL         logging.level
	LOG_FORMAT        logging.format

Validate checks validator struct tags and the cross-field rules: a token
or username/password is required, backoff_max must not be below
backoff_base, and a NATS URL is required when events are enabled.
*/
package config
