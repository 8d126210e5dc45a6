/*
 *
 * Copyright 2026 HiveDB authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# Hive: a horizontal-partitioning directory

A hive maps application-level partition keys to physical database nodes in a
sharded deployment. Applications ask "where does the record with partition
key K live?" and the hive answers with a connection to the correct shard. It
also records secondary-index keys so records can be located by attributes
other than the partition key, and enforces read-only locking at three
granularities: whole hive, individual node, individual partition key.

## Data Model

* PartitionDimension, a named partitioning axis owning nodes and resources

* Resource, an entity class partitioned along a dimension

* SecondaryIndex, an auxiliary lookup from an attribute value to a resource id

* Node, a physical shard addressed by URI

* KeySemaphore, the (node, status) record of one partition key

* HiveSemaphore, the global revision + read-only flag

## Architecture

The hive is consumed as a library. One process loads a Hive per metadata
store URI; cooperating processes sharing the same store converge through the
semaphore revision, polled by a background sync daemon.

* Directory - the persisted key-routing tables of one dimension

* Gateways - narrow CRUD per metadata entity

* Assigner - the node-selection policy invoked on primary-key insertion

* Connector - opens read or read-write connections to data nodes

## Building Blocks

* Rocksdb
* gRPC
* Prometheus

*/

package hive
