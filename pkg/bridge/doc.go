// Package bridge implements the IPC surface between a walletcore process and
// a remote bridge (a UI host or the walletd daemon) over a websocket.
//
// The call convention is deliberately minimal: a request invokes a route by
// name with a JSON string array of arguments. Arguments that are not already
// strings are JSON-serialized before being placed in the array, so the wire
// format never carries native numbers or nested objects at the top level.
// Route names are stable strings such as "auth/login" or "wallet/sign".
//
// Client is the caller side; Node is the serving side used by walletd.
package bridge
