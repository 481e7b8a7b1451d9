// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package cvprac provides a client for the HTTP/JSON management API of a
// clustered network controller.
//
// The client authenticates against one node of the cluster, keeps the session
// alive, and transparently fails over to the other nodes when the bound node
// stops answering. Callers issue plain GET/POST calls, use the endpoint table
// through Call, or use the typed wrappers built on top of it.
//
// # Quick Start
//
//	logger, _ := cvprac.NewLogger(cvprac.SinkStdout(), "INFO")
//	client := cvprac.NewClient(cvprac.WithLogger(logger))
//	defer client.Close()
//
//	ctx := context.Background()
//	err := client.Connect(ctx, []string{"cvp1", "cvp2", "cvp3"}, "admin", "secret")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	info, err := client.GetCvpInfo(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Version:", info.Get("version").String())
//
// # Retry and Failover
//
// Every call runs through one state machine:
//
//   - Timeout and SessionLoggedOut are recovered on the bound node, up to
//     RetriesPerNode attempts (default 3). A logged-out session is logged in
//     again before the retry.
//   - ConnectionError, TooManyRedirects and HttpError, and an exhausted
//     per-node budget, move the session to the next node in round-robin order.
//     Each node is tried at most once per call.
//   - ApiError and RequestError are returned at once; the controller has
//     answered and repeating the call would not change the answer.
//
// When no node is left the last error is returned. If the client could not
// rebind to any node it holds no session and every further call returns
// NoSession until Connect is called again.
//
// # Errors
//
// All engine errors are *CvpError. Match them by kind:
//
//	_, err := client.GetConfigletByName(ctx, "ntp")
//	switch {
//	case errors.Is(err, cvprac.ErrAPI):
//	    // controller rejected the call
//	case errors.Is(err, cvprac.ErrNoSession):
//	    // reconnect
//	}
//
// # JSON Manipulation
//
// Responses are gjson results; request bodies are built with Body:
//
//	body := cvprac.Body{}.
//	    Set("name", "ntp").
//	    Set("config", "ntp server 10.0.0.1\n")
//
//	res, err := client.Post(ctx, "/configlet/addConfiglet.do", body)
//	key := res.Get("data.key").String()
//
// # Thread Safety
//
// A Client may be shared between goroutines. All calls are serialised by one
// mutex, so requests on one Client never run in parallel.
//
// # References
//
//   - gjson: https://github.com/tidwall/gjson
//   - sjson: https://github.com/tidwall/sjson
//   - zap: https://github.com/uber-go/zap
package cvprac
