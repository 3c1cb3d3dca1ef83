/*
Package core is the reference platform: a plain JSON request and response shape
that any client (web chat, CLI, tests) can speak.

A request looks like:

	{
	  "version": "1.0",
	  "platform": "core",
	  "type": "TEXT",
	  "body": {"text": "hello"},
	  "nlu": {"intent": "Greet", "inputs": {"name": "Ada"}},
	  "session": {"id": "s-1", "new": true, "data": {}},
	  "user": {"id": "u-1"}
	}

Every field is optional. The platform claims payloads with "platform": "core" and,
when no platform is named, payloads whose body carries text. Body text is bounded,
stripped of control characters and of markup before it becomes turn.ASR.Text.

The response joins every queued utterance:

	{
	  "version": "1.0",
	  "response": {"output": {"speech": "Hi Ada.", "reprompt": "Anything else?"}, "shouldEndSession": false},
	  "sessionData": {}
	}
*/
package core
