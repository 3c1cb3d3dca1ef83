/*
Package extensible implements the plugin tree.

A Node owns configuration, a registry of named plugins and its own Stage Registry.
Plugins may embed *Node themselves, so composition nests to any depth
(root → platform → platform-local plugin). Plugin names are unique per node:
installing a name twice is a configuration error, never a silent replacement.
*/
package extensible
