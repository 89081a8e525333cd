// Copyright (c) 2026 The gopql Authors. All rights reserved.

/*
Package gopql builds PQL (Process Query Language) queries and runs them
against the EMS data export API.

# Building queries

A Query is an immutable value. Every builder method returns a new Query and
never changes the receiver, so partially built queries can be shared and
extended concurrently:

	base := gopql.NewQuery(`"CASES"."ID", "CASES"."AMOUNT"`).
		ForDataModel("0f3a...")
	top := base.Filter(`"CASES"."AMOUNT" > 100`).
		OrderByDesc(`"CASES"."AMOUNT"`).
		Limit(10)

The first misuse of the builder, e.g. Having without GroupBy or a negative
Limit, is recorded in the Query and reported by Err and by every Execute,
Stream or IterChunks call made with it. Later builder calls on a failed
query keep the first error.

Compile renders a query as PQL text. Clauses are always emitted in the
order SELECT, FILTER, GROUP BY, HAVING, ORDER BY, LIMIT, OFFSET no matter
the order the builder methods were called in.

# Sessions

A Session owns the HTTP transport, authentication and retry policy.

	cfg, err := gopql.LoadConnectionConfig()
	if err != nil {
		log.Fatal(err)
	}
	s, err := gopql.NewSession(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()
	rs, err := s.Execute(ctx, top)

Connection settings come from connections.toml or connections.yaml in
EMS_HOME (default ~/.ems). EMS_URL, EMS_API_TOKEN and EMS_KEY_TYPE override
the values in the file. A Config may also be built directly and checked
with Validate.

Authentication uses a static API token, sent with the Bearer or AppKey
prefix, or OAuth client credentials. OAuth tokens are refreshed shortly
before they expire and cached in the OS keyring, or in a lock protected file
under the user cache directory on Linux.

# Results

Execute drains every page into one ResultSet. Stream returns a
BatchIterator that fetches one page per Next call, and IterChunks regroups
the rows into ResultSets of a fixed size. All iterators return io.EOF after
the last page. WithLimit and WithOffset override the query's own paging for
a single call.

Export chunks are decoded from Parquet, Arrow IPC or JSON. The arrowbatches
package converts results to Arrow records and the export package writes
them to local files, S3, Azure Blob Storage or Google Cloud Storage.

# Errors

Every error returned by this package is a *QueryError. Its Kind groups it
into InvalidClause, MalformedQuery, RemoteQuery, Timeout or Configuration,
and errors.Is matches either a kind sentinel such as ErrRemoteQuery or a
specific code:

	if errors.Is(err, &gopql.QueryError{Number: gopql.ErrCodeInvalidPageToken}) {
		...
	}

Transient HTTP failures (429, 502, 503 and 504 responses and connection
errors) are retried with decorrelated jitter backoff up to
Config.MaxRetries times.

# Logging

gopql logs through a logrus backed Logger with secrets masked. The level
defaults to ERROR and can be changed with GetLogger().SetLogLevel, or for the
whole process with a client config file named by Config.ClientConfigFile or
EMS_CLIENT_CONFIG_FILE:

	{"common": {"log_level": "DEBUG", "log_path": "/var/log/pql"}}

SetLogger replaces the logger entirely.
*/
package gopql
