// Package confirmsdk is the wire contract and Go client for the confirmation
// gateway's HTTP API.
//
// Messages are posted on behalf of a chat user identified by a bearer token:
//
//	client := confirmsdk.NewClient("http://localhost:8080", token)
//	replies, err := client.SendMessage(ctx, "deploy web")
//	// replies[0]: This command requires confirmation within 1m0s. ...
//
// Health endpoints need no token.
package confirmsdk
